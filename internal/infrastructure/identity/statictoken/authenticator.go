// Package statictoken resolves bearer tokens from a fixed token-to-user table,
// typically loaded from AUTH_TOKENS.
package statictoken

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

type entry struct {
	token  []byte
	userID string
}

type Authenticator struct {
	entries []entry
}

// Parse reads "token:user,token:user" pairs.
func Parse(spec string) (*Authenticator, error) {
	a := &Authenticator{}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, userID, ok := strings.Cut(pair, ":")
		token, userID = strings.TrimSpace(token), strings.TrimSpace(userID)
		if !ok || token == "" || userID == "" {
			return nil, fmt.Errorf("invalid auth token entry %q: want token:user", pair)
		}
		a.entries = append(a.entries, entry{token: []byte(token), userID: userID})
	}
	if len(a.entries) == 0 {
		return nil, errors.New("no auth tokens configured")
	}
	return a, nil
}

func (a *Authenticator) Authenticate(_ context.Context, token string) (domain.UserIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.UserIdentity{}, domain.WrapError(domain.ErrUnauthenticated, "authenticate", errors.New("missing bearer token"))
	}

	candidate := []byte(token)
	userID := ""
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(candidate, e.token) == 1 {
			userID = e.userID
		}
	}
	if userID == "" {
		return domain.UserIdentity{}, domain.WrapError(domain.ErrUnauthenticated, "authenticate", errors.New("unknown token"))
	}
	return domain.UserIdentity{UserID: userID}, nil
}

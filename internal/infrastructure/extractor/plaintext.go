package extractor

import (
	"errors"
	"unicode/utf8"
)

func extractPlainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("text document is not valid utf-8")
	}
	return string(raw), nil
}

package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/document-insights/internal/core/domain"
)

var jsonFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ListParse is the tagged result of ParseStringList.
type ListParse struct {
	Items []string
	Mode  domain.ParseMode
}

// ParseStringList reads a model answer that was asked to be a JSON array of
// strings. A structurally valid answer yields ParseStructured; anything else
// falls back to one item per non-empty line of the raw answer.
func ParseStringList(raw string) ListParse {
	if items, ok := parseStructuredList(raw); ok {
		return ListParse{Items: items, Mode: domain.ParseStructured}
	}
	return ListParse{Items: splitNonEmptyLines(raw), Mode: domain.ParseLineSplit}
}

func parseStructuredList(raw string) ([]string, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return nil, false
	}
	if items, ok := decodeList(content); ok {
		return items, true
	}
	matches := jsonFenceRegex.FindStringSubmatch(content)
	if len(matches) >= 2 {
		return decodeList(strings.TrimSpace(matches[1]))
	}
	return nil, false
}

func decodeList(content string) ([]string, bool) {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return nil, false
	}

	switch v := value.(type) {
	case []any:
		return stringifyItems(v), true
	case map[string]any:
		// Models sometimes wrap the array: {"key_points": [...]}.
		var found []any
		arrays := 0
		for _, field := range v {
			if arr, ok := field.([]any); ok {
				found = arr
				arrays++
			}
		}
		if arrays != 1 {
			return nil, false
		}
		return stringifyItems(found), true
	case nil:
		return nil, false
	default:
		return []string{stringifyItem(v)}, true
	}
}

func stringifyItems(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		out = append(out, stringifyItem(v))
	}
	return out
}

func stringifyItem(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func splitNonEmptyLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

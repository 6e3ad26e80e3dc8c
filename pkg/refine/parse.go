package refine

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Reply parsing failures. They reach callers wrapped in an AIError.
var (
	ErrMissingJSON     = scerrors.New("AI response missing JSON object")
	ErrDecode          = scerrors.New("decoding AI json")
	ErrNoUsableSubject = scerrors.New("AI JSON missing usable subject")
)

// textKeys are searched in order when a JSON object stands in for text.
var textKeys = []string{"text", "value", "content", "message", "summary"}

// Parse extracts subject and body from a model reply.
func Parse(reply string) (subject, body string, err error) {
	blob, ok := Sanitize(reply)
	if !ok {
		return "", "", scerrors.Mark(scerrors.Newf("AI response missing JSON object: %s", preview(reply, 200)), ErrMissingJSON)
	}

	value, err := decode(blob)
	if err != nil {
		return "", "", err
	}

	obj, _ := value.(map[string]any)

	subject, err = CoerceSubject(obj["subject"])
	if err != nil {
		return "", "", err
	}
	return subject, CoerceBody(obj["body"]), nil
}

// Sanitize locates the JSON object in text, which may be wrapped in a
// fenced code block. It slices from the first '{' to the last '}' and
// reports false when no such span exists.
func Sanitize(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}

// decode parses exactly one JSON value, keeping numbers verbatim.
func decode(blob string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(blob))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, scerrors.Mark(scerrors.Wrap(err, "decoding AI json"), ErrDecode)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, scerrors.Mark(scerrors.New("decoding AI json: trailing data after object"), ErrDecode)
	}
	return value, nil
}

// ExtractText finds text in a decoded JSON value. Strings are returned as
// is, numbers and booleans are formatted, arrays join their textual
// elements with newlines, and objects yield the first textual value under
// text, value, content, message or summary.
func ExtractText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		var parts []string
		for _, item := range t {
			if s, ok := ExtractText(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	case map[string]any:
		for _, key := range textKeys {
			if inner, ok := t[key]; ok {
				if s, ok := ExtractText(inner); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}

// CoerceSubject returns the trimmed text of v, or ErrNoUsableSubject.
func CoerceSubject(v any) (string, error) {
	s, ok := ExtractText(v)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", ErrNoUsableSubject
	}
	return s, nil
}

// CoerceBody normalizes the body field. Arrays become "- " bullets with any
// existing marker removed; objects are searched under "bullets" or "lines"
// before falling back to ExtractText. Other shapes yield "".
func CoerceBody(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := ExtractText(item); ok {
				lines = append(lines, "- "+stripBullet(s))
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		if nested, ok := t["bullets"]; ok {
			return CoerceBody(nested)
		}
		if nested, ok := t["lines"]; ok {
			return CoerceBody(nested)
		}
		if s, ok := ExtractText(t); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// stripBullet removes leading '-' and '•' markers and surrounding space.
func stripBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•"))
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

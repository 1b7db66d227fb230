package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrParseFailed  = errors.New("failed to parse response")
	ErrEmptyContent = errors.New("empty response")
)

var fence = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")

// maxEmbedded bounds how many '{' positions are tried when looking for
// an object inside prose.
const maxEmbedded = 16

// Parse decodes a model reply into T. The trimmed reply is tried first,
// then every fenced code block, then JSON objects embedded in prose in
// the order they start.
func Parse[T any](content string) (T, error) {
	var zero T
	content = strings.TrimSpace(content)
	if content == "" {
		return zero, ErrEmptyContent
	}

	var last error
	for candidate := range candidates(content) {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			last = err
			continue
		}
		return v, nil
	}
	return zero, fmt.Errorf("%w: %v: %s", ErrParseFailed, last, truncate(content, 200))
}

func candidates(content string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield(content) {
			return
		}

		for _, m := range fence.FindAllStringSubmatch(content, -1) {
			if body := strings.TrimSpace(m[1]); body != "" && !yield(body) {
				return
			}
		}

		rest, tried := content, 0
		for tried < maxEmbedded {
			i := strings.IndexByte(rest, '{')
			if i < 0 {
				return
			}
			rest = rest[i:]
			tried++

			var raw json.RawMessage
			if err := json.NewDecoder(strings.NewReader(rest)).Decode(&raw); err == nil {
				if !yield(string(raw)) {
					return
				}
			}
			rest = rest[1:]
		}
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

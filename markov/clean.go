package markov

import (
	"regexp"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// Clean maps a surface link to its canonical key: lowercased, every run of
// characters outside [a-z0-9] collapsed to a single underscore, with one
// leading and one trailing underscore removed.
func Clean(surface string) string {
	key := nonAlnumRun.ReplaceAllString(strings.ToLower(surface), "_")
	key = strings.TrimPrefix(key, "_")
	return strings.TrimSuffix(key, "_")
}

// windows groups tokens into non-overlapping runs of order tokens joined by a
// single space. A short remainder at the end is kept as the final window.
func windows(tokens []string, order int) []string {
	links := make([]string, 0, (len(tokens)+order-1)/order)
	for i := 0; i < len(tokens); i += order {
		end := min(i+order, len(tokens))
		links = append(links, strings.Join(tokens[i:end], " "))
	}
	return links
}

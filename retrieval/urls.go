package retrieval

import (
	"regexp"
	"strings"
)

// urlRe stops at quotes, backslashes and angle brackets so URLs embedded in
// JSON or HTML end where the string ends.
var urlRe = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// FindURLs returns the distinct URLs found in texts, in order of appearance.
func FindURLs(texts []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range texts {
		for _, u := range urlRe.FindAllString(t, -1) {
			u = strings.TrimRight(u, `"'),.;:]}>`+"`")
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

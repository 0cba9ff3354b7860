package filter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/s0up4200/mircrew/mircrew"
)

var (
	// a year in parentheses is preferred over any other 4-digit run
	parenYearPattern = regexp.MustCompile(`\((\d{4})\)`)
	yearPattern      = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	tagPattern       = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

// newEnvironment builds the expression environment for one result
func newEnvironment(result mircrew.SearchResult) map[string]any {
	tags := Tags(result.Title)

	return map[string]any{
		// Result data
		"ID":    result.ID,
		"Title": result.Title,
		"URL":   result.URL,
		"Tags":  tags,

		// Result helpers
		"year": func() int {
			return Year(result.Title)
		},
		"hasTag": func(tag string) bool {
			for _, t := range tags {
				if strings.EqualFold(t, tag) {
					return true
				}
			}
			return false
		},

		// Case-insensitive string helpers; the infix contains, startsWith
		// and endsWith operators stay case-sensitive
		"includes": func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
		"hasPrefix": func(str, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
		},
		"hasSuffix": func(str, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
}

// Year extracts the release year from a topic title, 0 if there is none
func Year(title string) int {
	match := parenYearPattern.FindStringSubmatch(title)
	if match == nil {
		match = yearPattern.FindStringSubmatch(title)
	}
	if match == nil {
		return 0
	}
	year, _ := strconv.Atoi(match[1])
	return year
}

// Tags returns the bracketed tags of a topic title, e.g. "1080p" for "[1080p]".
// A tag group like "[iTA ENG]" yields each word as well as the whole group.
func Tags(title string) []string {
	tags := make([]string, 0)
	for _, match := range tagPattern.FindAllStringSubmatch(title, -1) {
		group := strings.TrimSpace(match[1])
		if group == "" {
			continue
		}
		tags = append(tags, group)
		if words := strings.FieldsFunc(group, isTagSeparator); len(words) > 1 {
			tags = append(tags, words...)
		}
	}
	return tags
}

func isTagSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == '/' || r == '-' || r == '|'
}

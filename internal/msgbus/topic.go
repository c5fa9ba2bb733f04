package msgbus

import (
	"regexp"
	"strings"
)

// topicMatcher is a compiled glob pattern over dot-separated topic
// segments. `*` matches any one whole segment; `?` matches a single
// character within a segment.
type topicMatcher struct {
	re *regexp.Regexp
}

func compileTopicPattern(pattern string) (*topicMatcher, error) {
	segments := strings.Split(pattern, ".")
	var sb strings.Builder
	sb.WriteString("^")
	for i, seg := range segments {
		if i > 0 {
			sb.WriteString(`\.`)
		}
		if seg == "*" {
			sb.WriteString(`[^.]+`)
			continue
		}
		for _, r := range seg {
			if r == '?' {
				sb.WriteString("[^.]")
			} else {
				sb.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	return &topicMatcher{re: re}, nil
}

func (m *topicMatcher) match(topic string) bool {
	return m.re.MatchString(topic)
}

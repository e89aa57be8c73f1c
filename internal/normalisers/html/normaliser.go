package html

import (
	"html"
	"regexp"
	"strings"
)

// Placeholders substituted for redacted spans.
const (
	URLPlaceholder   = "[URL]"
	EmailPlaceholder = "[EMAIL]"
)

// Normaliser cleans remote text.
type Normaliser struct {
	redact bool
}

// Option configures a Normaliser.
type Option func(*Normaliser)

// WithRedaction toggles URL and email replacement. Enabled by default.
func WithRedaction(enabled bool) Option {
	return func(n *Normaliser) {
		n.redact = enabled
	}
}

// New creates a new normaliser.
func New(opts ...Option) *Normaliser {
	n := &Normaliser{redact: true}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags           = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	urls              = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)
	emails            = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	multiSpaces       = regexp.MustCompile(`[ \t\f\v\r]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// Title normalises a single-line field such as a title.
func (n *Normaliser) Title(s string) string {
	return strings.Join(strings.Fields(n.Text(s)), " ")
}

// Text normalises a body field, keeping paragraph breaks.
func (n *Normaliser) Text(s string) string {
	if s == "" {
		return ""
	}

	s = scriptTag.ReplaceAllString(s, "")
	s = styleTag.ReplaceAllString(s, "")
	s = htmlComments.ReplaceAllString(s, "")

	// Block elements become line breaks so paragraphs survive tag stripping.
	s = openBlockElements.ReplaceAllString(s, "\n")
	s = blockElements.ReplaceAllString(s, "\n")
	s = brTags.ReplaceAllString(s, "\n")
	s = allTags.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	if n.redact {
		s = emails.ReplaceAllString(s, EmailPlaceholder)
		s = urls.ReplaceAllString(s, URLPlaceholder)
	}

	s = strings.ReplaceAll(s, " ", " ")
	s = multiSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		out = append(out, strings.TrimSpace(line))
	}
	s = strings.Join(out, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Package normalize cleans user-supplied text before it is stored.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Username bounds, matching the validator's username tag.
const (
	UsernameMinLen = 2
	UsernameMaxLen = 30
)

var (
	// Matches common HTML tags, to detect markup pasted into a caption or bio.
	htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)
	// Three or more newlines collapse to one blank line.
	blankLines = regexp.MustCompile(`\n{3,}`)
	// Anything a username cannot contain.
	usernameInvalid = regexp.MustCompile(`[^a-z0-9_.]+`)
)

// Text prepares a caption or bio: HTML becomes Markdown, line endings are
// unified and surrounding whitespace is trimmed.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if htmlTagPattern.MatchString(strings.ToLower(s)) {
		if md, err := htmltomarkdown.ConvertString(s); err == nil {
			s = md
		}
	}
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Username folds s into a handle: accents are stripped, letters lowercased,
// and characters outside [a-z0-9_.] dropped. The result is at most
// UsernameMaxLen long; it is empty when fewer than UsernameMinLen characters
// survive.
//
//	"José Álvarez" -> "josealvarez"
//	"ana.b@mail"   -> "ana.bmail"
func Username(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = usernameInvalid.ReplaceAllString(strings.ToLower(folded), "")
	folded = strings.TrimLeft(folded, "_.")
	if len(folded) > UsernameMaxLen {
		folded = folded[:UsernameMaxLen]
	}
	if len(folded) < UsernameMinLen {
		return ""
	}
	return folded
}

// UsernameWithSuffix appends n to base, trimming base so the result fits.
func UsernameWithSuffix(base string, n int) string {
	suffix := strconv.Itoa(n)
	if len(base)+len(suffix) > UsernameMaxLen {
		base = base[:UsernameMaxLen-len(suffix)]
	}
	return base + suffix
}

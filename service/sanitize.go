package service

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy    = bluemonday.StrictPolicy()
	markdownHeading = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	markdownMarkers = strings.NewReplacer("**", "", "__", "", "##", "", "`", "")
)

// CleanText strips markup from model output and reviewer input so that only
// plain text reaches the preview page and the PDF.
func CleanText(s string) string {
	s = strictPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = markdownHeading.ReplaceAllString(s, "")
	s = markdownMarkers.Replace(s)
	return normalizeText(s)
}

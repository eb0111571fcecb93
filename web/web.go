// Package web holds the HTML templates served by the analyzer.
package web

import (
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return t.Format("02 Jan 2006 15:04")
		},
		"lower": strings.ToLower,
	}).ParseFS(templateFS, "templates/*.html")
}

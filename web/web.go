// Package web embeds the server-rendered HTML templates.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var content embed.FS

// Templates parses every embedded page. Templates are addressed by file name, e.g. "loans.html".
func Templates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{
			"date": func(t time.Time) string { return t.Format("2006-01-02") },
		}).
		ParseFS(content, "templates/*.html")
}

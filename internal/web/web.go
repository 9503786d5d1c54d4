// Package web holds the HTML pages rendered by the handlers.
package web

import (
	"embed"
	"html/template"
	"time"

	"todolist/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const timeLayout = "Jan 2, 2006 15:04"

// Page is the data every template is executed with.
type Page struct {
	Title     string
	User      models.Principal
	Error     string
	Next      string
	Form      any
	Tasks     []models.Task
	Task      *models.Task
	Completed bool
}

var funcs = template.FuncMap{
	"formatTime": formatTime,
}

// Templates parses the embedded pages. Each page is addressed by its file
// name, e.g. "tasks.html".
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates for process start-up.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

func formatTime(value any) string {
	switch t := value.(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(timeLayout)
	default:
		return ""
	}
}

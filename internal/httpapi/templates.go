package httpapi

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "dashboard", "commands"}

func mustParsePages() map[string]*template.Template {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return pages
}

type pageData struct {
	Title    string
	Username string
}

type dashboardPage struct {
	pageData
	Guilds []DiscordGuild
}

type commandRow struct {
	Name     string
	Response string
}

type commandsPage struct {
	pageData
	GuildID       int64
	GuildName     string
	Query         string
	Prefix        string
	CSRF          string
	MaxNameLength int
	Commands      []commandRow
}

func (r *router) render(w http.ResponseWriter, name string, data any) {
	page, ok := r.pages[name]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.ExecuteTemplate(w, "layout", data); err != nil {
		r.deps.Logger.Error("render page failed", "page", name, "error", err)
	}
}

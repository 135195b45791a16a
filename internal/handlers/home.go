package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
)

type homePageData struct {
	Title         string
	Welcome       template.HTML
	Suggestions   []string
	HistoryTitles []string
}

// HandleHome renders the chat page. The conversation itself lives in the browser, so the page always
// starts empty and only carries the welcome text, the suggestions and the history panel.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := homePageData{
		Title:         m.page.Title,
		Welcome:       m.welcome,
		Suggestions:   m.page.Suggestions,
		HistoryTitles: m.page.HistoryTitles,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

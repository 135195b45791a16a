package handlers

import (
	"context"
	"fmt"
	"html/template"
	"iter"
	"log/slog"

	englishbuddy "github.com/MegaGrindStone/english-buddy"
	"github.com/MegaGrindStone/english-buddy/internal/models"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a context
// and a sequence of messages, returning an iterator that yields response chunks and potential errors.
// Implementations are expected to carry their own system prompt and reply length cap.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Page holds the static content of the chat page: the title, the canned suggestions and the titles shown
// in the (decorative) history panel.
type Page struct {
	Title         string
	Suggestions   []string
	HistoryTitles []string
}

// Main handles the core functionality of the chat application, serving the chat page and relaying
// conversations to the LLM.
type Main struct {
	templates *template.Template
	welcome   template.HTML
	page      Page

	llm LLM

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main instance with the provided LLM implementation. It parses the required HTML
// templates from the embedded filesystem and renders the welcome text once, since it never changes.
func NewMain(llm LLM, page Page, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		englishbuddy.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	src, err := englishbuddy.ContentFS.ReadFile("content/welcome.md")
	if err != nil {
		return Main{}, fmt.Errorf("failed to read welcome text: %w", err)
	}
	welcome, err := models.RenderMarkdown(src)
	if err != nil {
		return Main{}, err
	}

	return Main{
		templates: tmpl,
		welcome:   welcome,
		page:      page,
		llm:       llm,
		logger:    logger.With(slog.String("module", "main")),
	}, nil
}

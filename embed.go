package englishbuddy

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the web interface. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets, the browser chat client script and its stylesheet.
//
//go:embed static/*
var StaticFS embed.FS

// ContentFS contains the markdown documents rendered into the pages, such as the welcome text shown
// before the first message of a conversation.
//
//go:embed content/*
var ContentFS embed.FS

package voicewebui

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the conversation page. These templates
// are organized in a directory structure that separates layouts, pages, and partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets, the script that keeps the transcript live and drives the
// text chat path.
//
//go:embed static/*
var StaticFS embed.FS

package handlers

import (
	"fmt"
	"html"
	"net/http"
)

// DocsHandler serves the OpenAPI documentation UI using Stoplight Elements.
// The page follows the browser's light or dark preference.
type DocsHandler struct {
	title    string
	specPath string
}

// NewDocsHandler creates a new documentation handler.
func NewDocsHandler(title, specPath string) *DocsHandler {
	return &DocsHandler{title: title, specPath: specPath}
}

// ServeHTTP serves the documentation page.
func (h *DocsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, docsPage, html.EscapeString(h.title), html.EscapeString(h.specPath))
}

const docsPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="referrer" content="same-origin" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>%s</title>
    <link href="https://unpkg.com/@stoplight/elements@8/styles.min.css" rel="stylesheet" />
    <script src="https://unpkg.com/@stoplight/elements@8/web-components.min.js" crossorigin="anonymous"></script>
    <style>
      @media (prefers-color-scheme: dark) {
        html { color-scheme: dark; }
        body { background-color: #18181b; }
      }
    </style>
  </head>
  <body style="height: 100vh; margin: 0;">
    <elements-api apiDescriptionUrl="%s" router="hash" layout="sidebar" tryItCredentialsPolicy="same-origin" />
  </body>
</html>
`

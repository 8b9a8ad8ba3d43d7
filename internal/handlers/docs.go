package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/russross/blackfriday/v2"
)

// allowedDocs maps the public document names to files under the docs root
var allowedDocs = map[string]string{
	"README": "README.md",
	"ABOUT":  "docs/ABOUT.md",
	"API":    "docs/API.md",
}

var docTitles = map[string]string{
	"README": "Project Overview",
	"ABOUT":  "About SteadyStream",
	"API":    "HTTP API",
}

// DocsHandler renders the project's Markdown documents
type DocsHandler struct {
	root string
}

// NewDocsHandler creates a docs handler reading files relative to root
func NewDocsHandler(root string) *DocsHandler {
	if root == "" {
		root = "."
	}
	return &DocsHandler{root: root}
}

// ServeMarkdownAsHTML handles GET /doc/:doc
func (h *DocsHandler) ServeMarkdownAsHTML(c *gin.Context) {
	docName := strings.ToUpper(c.Param("doc"))
	if docName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Document name required"})
		return
	}

	fileName, exists := allowedDocs[docName]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	content, err := os.ReadFile(filepath.Join(h.root, fileName))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	extensions := blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags,
	})
	htmlContent := blackfriday.Run(content, blackfriday.WithRenderer(renderer), blackfriday.WithExtensions(extensions))

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, wrapWithTheme(string(htmlContent), documentTitle(docName)))
}

func documentTitle(docName string) string {
	if title, exists := docTitles[docName]; exists {
		return title
	}
	return strings.ReplaceAll(docName, "_", " ")
}

func wrapWithTheme(content, title string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>` + title + ` - SteadyStream</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #faf8f5;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 860px; margin: 0 auto; }
        .header {
            background: linear-gradient(135deg, #0f766e 0%, #14b8a6 100%);
            color: white;
            padding: 2rem;
            margin-bottom: 2rem;
            border-radius: 12px;
            text-align: center;
        }
        .header h1 { margin: 0; font-size: 2rem; }
        .content {
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            border: 1px solid #e5e7eb;
        }
        .content h2 { color: #0f766e; }
        .content pre {
            background: #f3f4f6;
            border-radius: 8px;
            padding: 1rem;
            overflow-x: auto;
        }
        .content code { font-family: 'Menlo', 'Ubuntu Mono', monospace; font-size: 0.9rem; }
        .content table { width: 100%; border-collapse: collapse; }
        .content th, .content td { border: 1px solid #d1d5db; padding: 0.5rem; text-align: left; }
        .content a { color: #0f766e; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>` + title + `</h1></div>
        <div class="content">
            ` + content + `
        </div>
    </div>
</body>
</html>`
}

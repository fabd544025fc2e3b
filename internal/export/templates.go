package export

import (
	"bytes"
	"html/template"
	"time"
)

// TemplateData carries everything the export page needs about a note.
// ContentHTML is the already-rendered markdown body and is inserted as-is.
type TemplateData struct {
	Title       string
	FolderName  string
	Author      string
	UpdatedAt   time.Time
	Tags        []string
	ContentHTML template.HTML
}

// RenderNoteHTML produces the standalone HTML page that both export
// backends consume.
func RenderNoteHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := notePage.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var notePage = template.Must(template.New("note").Parse(notePageHTML))

const notePageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, "Times New Roman", serif; line-height: 1.5; max-width: 46rem; margin: 2rem auto; color: #1a1a1a; }
    h1 { font-size: 1.8rem; margin-bottom: 0.25rem; }
    header { border-bottom: 1px solid #d0d0d0; margin-bottom: 1.5rem; padding-bottom: 0.75rem; }
    .byline { color: #707070; font-size: 0.85rem; }
    .tag { display: inline-block; background: #f0f3f6; border-radius: 4px; padding: 0 0.45rem; margin-right: 0.35rem; font-size: 0.8rem; }
    pre { background: #f6f6f6; padding: 0.75rem 1rem; overflow-x: auto; font-size: 0.85rem; }
    blockquote { border-left: 3px solid #c8c8c8; margin-left: 0; padding-left: 1rem; color: #555; }
    img { max-width: 100%; }
  </style>
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
    <div class="byline">
      {{if .FolderName}}{{.FolderName}} &middot; {{end}}{{if .Author}}{{.Author}} &middot; {{end}}{{.UpdatedAt.Format "Jan 2, 2006"}}
    </div>
    {{if .Tags}}<div class="byline">{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div>{{end}}
  </header>
  <main>{{.ContentHTML}}</main>
</body>
</html>`

package export

import (
	"fmt"
	"html/template"
)

// Service turns a note into a downloadable file.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the note body to HTML and hands it to the format backend.
func (s *Service) Export(req Request) (*Result, error) {
	contentHTML, err := MarkdownToHTML(req.Body)
	if err != nil {
		return nil, fmt.Errorf("render note body: %w", err)
	}

	data := TemplateData{
		Title:       req.Title,
		FolderName:  req.FolderName,
		Author:      req.Author,
		UpdatedAt:   req.UpdatedAt,
		Tags:        req.Tags,
		ContentHTML: template.HTML(contentHTML),
	}

	html, err := RenderNoteHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, req.Title)
	case FormatDOCX:
		return exportDOCX(html, req.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

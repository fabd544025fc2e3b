// Package export renders notes to downloadable PDF and DOCX files.
package export

import (
	"errors"
	"time"
)

// Format names a supported output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request is everything needed to render one note.
type Request struct {
	Title      string
	Body       string
	Tags       []string
	FolderName string
	Author     string
	UpdatedAt  time.Time
	Format     Format
}

// Result is the rendered file plus the metadata an HTTP handler needs to
// serve it as a download.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Dependency errors distinguish "backend tool not installed" from render
// failures so handlers can answer 503 instead of 500.
var (
	ErrPDFDependencyMissing  = errors.New("export pdf dependency missing")
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

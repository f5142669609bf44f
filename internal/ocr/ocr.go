// Package ocr turns uploaded bills and identity documents into plain text
// for the extraction model.
package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agency-crm/internal/config"
)

// ErrUnsupported is returned when a provider cannot read a document type.
var ErrUnsupported = eris.New("ocr: unsupported document type")

// Document is an uploaded file.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool {
	return d.MIMEType == "application/pdf" || strings.EqualFold(filepath.Ext(d.Name), ".pdf")
}

// IsText reports whether the document is already plain text.
func (d Document) IsText() bool {
	return strings.HasPrefix(d.MIMEType, "text/") || strings.EqualFold(filepath.Ext(d.Name), ".txt")
}

// ReadDocument loads a file from disk, guessing its MIME type from the
// extension.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, eris.Wrapf(err, "ocr: read %s", path)
	}
	return Document{Name: filepath.Base(path), MIMEType: mimeFromExt(path), Data: data}, nil
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	}
	return "application/octet-stream"
}

// Extractor extracts text content from documents.
type Extractor interface {
	ExtractText(ctx context.Context, doc Document) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires ocr.mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

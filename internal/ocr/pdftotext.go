package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs with the pdftotext CLI. Images are not
// supported.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText stages the PDF in a temp file and runs pdftotext -layout on it.
func (p *PdfToText) ExtractText(ctx context.Context, doc Document) (string, error) {
	if doc.IsText() {
		return string(doc.Data), nil
	}
	if !doc.IsPDF() {
		return "", eris.Wrapf(ErrUnsupported, "ocr: pdftotext cannot read %s (%s)", doc.Name, doc.MIMEType)
	}

	f, err := os.CreateTemp("", "agency-crm-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "ocr: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck
	if _, err := f.Write(doc.Data); err != nil {
		f.Close() //nolint:errcheck,gosec
		return "", eris.Wrap(err, "ocr: stage pdf")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: stage pdf")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", f.Name(), "-") //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", doc.Name, stderr.String())
	}

	return stdout.String(), nil
}

package files

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Inspector checks the content of an upload beyond its declared type.
type Inspector interface {
	Inspect(mimeType string, content []byte) error
}

// InspectorFunc adapts a function to Inspector.
type InspectorFunc func(mimeType string, content []byte) error

func (f InspectorFunc) Inspect(mimeType string, content []byte) error {
	return f(mimeType, content)
}

func init() {
	api.DisableConfigDir()
}

// PDFInspector rejects application/pdf uploads that pdfcpu cannot parse.
// Other types pass through.
type PDFInspector struct {
	conf *model.Configuration
}

// NewPDFInspector returns an inspector using relaxed pdfcpu validation.
func NewPDFInspector() *PDFInspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFInspector{conf: conf}
}

// Inspect implements Inspector.
func (p *PDFInspector) Inspect(mimeType string, content []byte) error {
	if baseType(mimeType) != "application/pdf" {
		return nil
	}
	if err := api.Validate(bytes.NewReader(content), p.conf); err != nil {
		return fmt.Errorf("not a valid PDF: %w", err)
	}
	return nil
}

package detect

import (
	"fmt"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect/imagefx"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect/pdf"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect/sheet"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect/text"
	"github.com/bryanwahyu/automaton-forensics/internal/infra/detect/wordproc"
)

// Registry mapping statis format -> detector family, dibangun sekali
// saat start. Tidak ada mutasi runtime.
type Registry struct {
	byFormat map[documents.Format][]analysis.Detector
}

// NewRegistry pasang semua family; nama di disabled dilewati
// (misal "image/lighting" buat deployment yang nggak mau cek itu).
func NewRegistry(disabled []string) *Registry {
	skip := map[string]bool{}
	for _, n := range disabled {
		skip[n] = true
	}

	add := func(dst []analysis.Detector, ds ...analysis.Detector) []analysis.Detector {
		for _, d := range ds {
			if !skip[d.Name()] {
				dst = append(dst, d)
			}
		}
		return dst
	}

	r := &Registry{byFormat: map[documents.Format][]analysis.Detector{}}
	r.byFormat[documents.FormatText] = add(nil,
		text.NewEncodingDetector(),
		text.NewControlCharDetector(),
		text.NewHomoglyphDetector(),
		text.NewLineEndingDetector(),
	)
	r.byFormat[documents.FormatSpreadsheet] = add(nil,
		sheet.NewHiddenDetector(),
		sheet.NewMacroDetector(),
		sheet.NewFormulaDetector(),
		sheet.NewValidationDetector(),
	)
	r.byFormat[documents.FormatWordProcessor] = add(nil,
		wordproc.NewRevisionDetector(),
		wordproc.NewStyleDetector(),
		wordproc.NewHiddenTextDetector(),
		wordproc.NewFontDetector(),
	)
	r.byFormat[documents.FormatImage] = add(nil,
		imagefx.NewCopyMoveDetector(),
		imagefx.NewNoiseDetector(),
		imagefx.NewCompressionDetector(),
		imagefx.NewLightingDetector(),
	)
	r.byFormat[documents.FormatPDF] = add(nil,
		pdf.NewIncrementalDetector(),
		pdf.NewSignatureDetector(),
		pdf.NewObjectGenDetector(),
		pdf.NewTextLayerDetector(),
	)
	return r
}

// DetectorsFor balikin detector set terurut untuk format, atau
// ErrUnsupportedFormat (terminal, tidak di-retry).
func (r *Registry) DetectorsFor(format documents.Format) ([]analysis.Detector, error) {
	ds, ok := r.byFormat[format]
	if !ok || len(ds) == 0 {
		return nil, fmt.Errorf("%w: %s", analysis.ErrUnsupportedFormat, format)
	}
	return ds, nil
}

func (r *Registry) Supported(format documents.Format) bool {
	return len(r.byFormat[format]) > 0
}

package analysis

import (
	"time"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// Kind tag per jenis pemeriksaan detector
type Kind string

const (
	// text family
	KindMixedEncoding     Kind = "mixed-encoding"
	KindControlCharacters Kind = "control-characters"
	KindInvisibleChars    Kind = "invisible-characters"
	KindHomoglyph         Kind = "homoglyph"
	KindLineEndingMix     Kind = "line-ending-inconsistency"
	KindBidiOverride      Kind = "bidi-override"

	// spreadsheet family
	KindFormulaDivergence Kind = "formula-value-divergence"
	KindHiddenSheet       Kind = "hidden-sheet"
	KindHiddenRowsCols    Kind = "hidden-rows-columns"
	KindMacroPresent      Kind = "macro-present"
	KindValidationBypass  Kind = "validation-bypass"

	// word-processor family
	KindRevisionGap        Kind = "revision-gap"
	KindRevisionOutOfOrder Kind = "revision-out-of-order"
	KindStyleMismatch      Kind = "style-mismatch"
	KindHiddenText         Kind = "hidden-text"
	KindWhiteText          Kind = "white-on-white-text"
	KindFontSubstitution   Kind = "font-substitution"
	KindTimestampAnomaly   Kind = "metadata-timestamp-anomaly"

	// image family
	KindCopyMove           Kind = "copy-move-region"
	KindNoiseInconsistency Kind = "noise-variance-inconsistency"
	KindCompressionSeam    Kind = "compression-artifact-discontinuity"
	KindLightingMismatch   Kind = "lighting-direction-inconsistency"

	// pdf family
	KindIncrementalUpdate  Kind = "incremental-update"
	KindSignatureInvalid   Kind = "signature-invalid"
	KindObjectGeneration   Kind = "object-generation-mismatch"
	KindInvisibleTextLayer Kind = "text-visual-mismatch"
	KindXrefConflict       Kind = "xref-conflict"

	// cross-cutting
	KindFormatMismatch   Kind = "format-mismatch"
	KindTruncatedContent Kind = "truncated-content"
	KindDetectorError    Kind = "detector-error"
	KindDetectorTimeout  Kind = "detector-timeout"
)

// Category kelompok bukti untuk pembobotan skor
type Category string

const (
	CategoryContent   Category = "content"
	CategoryStructure Category = "structure"
	CategoryMetadata  Category = "metadata"
	CategoryVisual    Category = "visual"
)

var kindCategories = map[Kind]Category{
	KindMixedEncoding:      CategoryContent,
	KindControlCharacters:  CategoryContent,
	KindInvisibleChars:     CategoryContent,
	KindHomoglyph:          CategoryContent,
	KindLineEndingMix:      CategoryContent,
	KindBidiOverride:       CategoryContent,
	KindFormulaDivergence:  CategoryContent,
	KindHiddenSheet:        CategoryStructure,
	KindHiddenRowsCols:     CategoryStructure,
	KindMacroPresent:       CategoryStructure,
	KindValidationBypass:   CategoryContent,
	KindRevisionGap:        CategoryMetadata,
	KindRevisionOutOfOrder: CategoryMetadata,
	KindStyleMismatch:      CategoryStructure,
	KindHiddenText:         CategoryContent,
	KindWhiteText:          CategoryVisual,
	KindFontSubstitution:   CategoryStructure,
	KindTimestampAnomaly:   CategoryMetadata,
	KindCopyMove:           CategoryVisual,
	KindNoiseInconsistency: CategoryVisual,
	KindCompressionSeam:    CategoryVisual,
	KindLightingMismatch:   CategoryVisual,
	KindIncrementalUpdate:  CategoryStructure,
	KindSignatureInvalid:   CategoryMetadata,
	KindObjectGeneration:   CategoryStructure,
	KindInvisibleTextLayer: CategoryContent,
	KindXrefConflict:       CategoryStructure,
	KindFormatMismatch:     CategoryMetadata,
	KindTruncatedContent:   CategoryStructure,
}

// CategoryOf mengembalikan kategori kind; error-kind tidak ikut skor jadi
// dipetakan ke metadata hanya untuk pelaporan.
func CategoryOf(k Kind) Category {
	if c, ok := kindCategories[k]; ok {
		return c
	}
	return CategoryMetadata
}

// Region area pixel pada image
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Location lokasi bukti; field terisi sesuai format dokumen
type Location struct {
	ByteOffset *int64  `json:"byte_offset,omitempty"`
	Page       *int    `json:"page,omitempty"`
	Line       *int    `json:"line,omitempty"`
	Sheet      string  `json:"sheet,omitempty"`
	CellRef    string  `json:"cell_ref,omitempty"`
	Region     *Region `json:"region,omitempty"`
}

// Indicator satu unit bukti dari satu invokasi detector, immutable
type Indicator struct {
	Kind       Kind      `json:"kind"`
	Confidence float64   `json:"confidence"`
	Evidence   string    `json:"evidence"`
	Location   *Location `json:"location,omitempty"`
	Error      bool      `json:"error,omitempty"`
	Detector   string    `json:"detector,omitempty"`
}

// RiskLevel enum
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AnalysisResult hasil final satu job; tidak pernah di-mutate,
// re-analysis bikin result baru.
type AnalysisResult struct {
	JobID       string               `json:"job_id"`
	TenantID    string               `json:"tenant_id"`
	DocumentID  documents.DocumentID `json:"document_id"`
	Format      documents.Format     `json:"format"`
	Indicators  []Indicator          `json:"indicators"`
	Confidence  float64              `json:"confidence"`
	Risk        RiskLevel            `json:"risk"`
	CompletedAt time.Time            `json:"completed_at"`
}

// IndicatorCounts ringkasan per risk level untuk endpoint summary
type IndicatorCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

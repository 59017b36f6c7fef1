package documents

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// ID dokumen = SHA-256 hex dari raw bytes
type DocumentID string

// Format enum
type Format string

const (
	FormatText          Format = "text"
	FormatSpreadsheet   Format = "spreadsheet"
	FormatWordProcessor Format = "wordprocessor"
	FormatImage         Format = "image"
	FormatPDF           Format = "pdf"
	FormatUnknown       Format = "unknown"
)

// Entity: Document (immutable setelah di-hash)
type Document struct {
	ID             DocumentID `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Name           string     `json:"name,omitempty"`
	DeclaredFormat Format     `json:"declared_format"`
	SniffedFormat  Format     `json:"sniffed_format,omitempty"`
	SizeBytes      int64      `json:"size_bytes"`
	ContentRef     string     `json:"content_ref,omitempty"`
	CorrelationID  string     `json:"correlation_id,omitempty"`
	IngestedAt     time.Time  `json:"ingested_at"`
}

// ComputeID menghitung identitas dokumen dari isi mentah.
// Bytes identik selalu menghasilkan ID identik.
func ComputeID(content []byte) DocumentID {
	sum := sha256.Sum256(content)
	return DocumentID(hex.EncodeToString(sum[:]))
}

// ParseFormat normalizes a caller-declared format string.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt", "plain", "plaintext":
		return FormatText, true
	case "spreadsheet", "xlsx", "xlsm", "excel":
		return FormatSpreadsheet, true
	case "wordprocessor", "word", "docx", "docm", "document":
		return FormatWordProcessor, true
	case "image", "jpeg", "jpg", "png", "gif":
		return FormatImage, true
	case "pdf":
		return FormatPDF, true
	}
	return FormatUnknown, false
}

var (
	magicPDF  = []byte("%PDF-")
	magicPNG  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicGIF  = []byte("GIF8")
	magicZIP  = []byte{'P', 'K', 0x03, 0x04}
)

// SniffFormat tebak format dari magic bytes, nama file cuma hint untuk OOXML.
func SniffFormat(name string, content []byte) Format {
	switch {
	case bytes.HasPrefix(content, magicPDF):
		return FormatPDF
	case bytes.HasPrefix(content, magicPNG), bytes.HasPrefix(content, magicJPEG), bytes.HasPrefix(content, magicGIF):
		return FormatImage
	case bytes.HasPrefix(content, magicZIP):
		return sniffOOXML(name, content)
	}
	if looksTextual(content) {
		return FormatText
	}
	return FormatUnknown
}

// OOXML zip punya nama part di local file headers, jadi cukup substring scan
// tanpa membuka arsipnya.
func sniffOOXML(name string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return FormatSpreadsheet
	case ".docx", ".docm", ".dotx":
		return FormatWordProcessor
	}
	if bytes.Contains(content, []byte("xl/workbook.xml")) {
		return FormatSpreadsheet
	}
	if bytes.Contains(content, []byte("word/document.xml")) {
		return FormatWordProcessor
	}
	return FormatUnknown
}

func looksTextual(content []byte) bool {
	if len(content) == 0 {
		return true
	}
	sample := content
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if utf8.Valid(sample) {
		// valid UTF-8 dengan NUL tetap dianggap biner
		return !bytes.ContainsRune(sample, 0)
	}
	printable := 0
	for _, b := range sample {
		if b == '\t' || b == '\n' || b == '\r' || (b >= 0x20 && b < 0x7f) || b >= 0x80 {
			printable++
		}
	}
	return printable*100 >= len(sample)*90
}

package documents

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeID_StableAndContentAddressed(t *testing.T) {
	// sha256("hello world")
	assert.Equal(t,
		DocumentID("b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"),
		ComputeID([]byte("hello world")))

	a := ComputeID([]byte("same bytes"))
	b := ComputeID([]byte("same bytes"))
	c := ComputeID([]byte("same bytes!"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, string(a), 64)
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"text", FormatText, true},
		{"TXT", FormatText, true},
		{"plaintext", FormatText, true},
		{"xlsx", FormatSpreadsheet, true},
		{"Excel", FormatSpreadsheet, true},
		{" docx ", FormatWordProcessor, true},
		{"word", FormatWordProcessor, true},
		{"jpeg", FormatImage, true},
		{"png", FormatImage, true},
		{"PDF", FormatPDF, true},
		{"exe", FormatUnknown, false},
		{"", FormatUnknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseFormat(tc.in)
		assert.Equalf(t, tc.want, got, "input %q", tc.in)
		assert.Equalf(t, tc.ok, ok, "input %q", tc.in)
	}
}

func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSniffFormat_MagicBytes(t *testing.T) {
	assert.Equal(t, FormatPDF, SniffFormat("a.pdf", []byte("%PDF-1.7\n...")))
	assert.Equal(t, FormatImage, SniffFormat("a.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0}))
	assert.Equal(t, FormatImage, SniffFormat("a.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, FormatImage, SniffFormat("a.gif", []byte("GIF89a")))
	assert.Equal(t, FormatText, SniffFormat("a.txt", []byte("plain old text\n")))
}

func TestSniffFormat_OOXML(t *testing.T) {
	assert.Equal(t, FormatSpreadsheet, SniffFormat("book.bin", zipWith(t, "xl/workbook.xml")))
	assert.Equal(t, FormatWordProcessor, SniffFormat("doc.bin", zipWith(t, "word/document.xml")))

	// ekstensi menang saat isi arsip tidak jelas
	plainZip := zipWith(t, "random/part.xml")
	assert.Equal(t, FormatSpreadsheet, SniffFormat("report.XLSX", plainZip))
	assert.Equal(t, FormatWordProcessor, SniffFormat("letter.docx", plainZip))
	assert.Equal(t, FormatUnknown, SniffFormat("archive.zip", plainZip))
}

func TestSniffFormat_Binary(t *testing.T) {
	// NUL byte = biner walau sisanya valid UTF-8
	assert.Equal(t, FormatUnknown, SniffFormat("x", []byte("abc\x00def")))
	assert.Equal(t, FormatText, SniffFormat("empty", nil))
}

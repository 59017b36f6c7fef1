package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

const cleanPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog >>
endobj
xref
0 2
0000000000 65535 f
0000000009 00000 n
trailer
<< /Size 2 >>
startxref
9
%%EOF`

func TestIncrementalDetector_CleanSingleRevision(t *testing.T) {
	inds, err := NewIncrementalDetector().Analyze(context.Background(), []byte(cleanPDF))
	require.NoError(t, err)
	assert.Empty(t, inds)
}

func TestIncrementalDetector_CountsRevisions(t *testing.T) {
	content := []byte(`%PDF-1.5
1 0 obj
<< /Type /Catalog >>
endobj
startxref
9
%%EOF
1 1 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
startxref
60
%%EOF`)

	inds, err := NewIncrementalDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindIncrementalUpdate, inds[0].Kind)
	assert.InDelta(t, 0.5625, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "2 revisions")
}

func TestIncrementalDetector_DataAfterFinalEOF(t *testing.T) {
	content := []byte(`%PDF-1.4
1 0 obj
<< >>
endobj
startxref
9
%%EOF
SECRET PAYLOAD`)

	inds, err := NewIncrementalDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindXrefConflict, inds[0].Kind)
	assert.InDelta(t, 0.6, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "after final %EOF")
	require.NotNil(t, inds[0].Location)
	require.NotNil(t, inds[0].Location.ByteOffset)
}

func TestIncrementalDetector_XrefOffsetBeyondFile(t *testing.T) {
	content := []byte(`%PDF-1.4
1 0 obj
<< >>
endobj
xref
0 2
0000000000 65535 f
9999999999 00000 n
trailer
<< /Size 2 >>
startxref
30
%%EOF`)

	inds, err := NewIncrementalDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindXrefConflict, inds[0].Kind)
	assert.InDelta(t, 0.7, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "object 1")
	assert.Contains(t, inds[0].Evidence, "9999999999")
}

// signedPDF bikin PDF dengan ByteRange yang konsisten: [0 b] menutup sampai
// sebelum '<' Contents, [c e] dari setelah '>' sampai akhir file.
func signedPDF(t *testing.T, hexContents string) []byte {
	t.Helper()
	base := "%PDF-1.6\n1 0 obj\n<< /Type /Sig /ByteRange [0 AAAAAAAAAA BBBBBBBBBB CCCCCCCCCC] /Contents <" +
		hexContents + "> >>\nendobj\ntrailer\n<< /Size 2 >>\nstartxref\n18\n%%EOF"
	b := strings.Index(base, "<"+hexContents)
	require.Positive(t, b)
	c := b + len(hexContents) + 2
	e := len(base) - c
	s := strings.Replace(base, "AAAAAAAAAA", fmt.Sprintf("%010d", b), 1)
	s = strings.Replace(s, "BBBBBBBBBB", fmt.Sprintf("%010d", c), 1)
	s = strings.Replace(s, "CCCCCCCCCC", fmt.Sprintf("%010d", e), 1)
	return []byte(s)
}

func TestSignatureDetector_IntactSignedDocument(t *testing.T) {
	inds, err := NewSignatureDetector().Analyze(context.Background(), signedPDF(t, "DEADBEEF"))
	require.NoError(t, err)
	assert.Empty(t, inds)
}

func TestSignatureDetector_AppendedAfterSignedRange(t *testing.T) {
	content := append(signedPDF(t, "DEADBEEF"), []byte("\n2 0 obj\n<< /Extra true >>\nendobj")...)

	inds, err := NewSignatureDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindSignatureInvalid, inds[0].Kind)
	assert.InDelta(t, 0.85, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "appended after the signed ByteRange")
}

func TestSignatureDetector_ZeroFilledPlaceholder(t *testing.T) {
	inds, err := NewSignatureDetector().Analyze(context.Background(), signedPDF(t, "0000000000"))
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.InDelta(t, 0.5, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "signing never completed")
}

func TestSignatureDetector_MalformedByteRange(t *testing.T) {
	content := []byte("%PDF-1.4\n1 0 obj\n<< /ByteRange [3 10 20 50] /Contents <AB> >>\nendobj\n%%EOF")

	inds, err := NewSignatureDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.InDelta(t, 0.8, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "malformed")
}

func TestObjectGenDetector_GenerationWithoutHistory(t *testing.T) {
	content := []byte(`%PDF-1.4
2 1 obj
<< >>
endobj
startxref
0
%%EOF`)

	inds, err := NewObjectGenDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindObjectGeneration, inds[0].Kind)
	assert.InDelta(t, 0.65, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "object 2 has generation 1")
}

func TestObjectGenDetector_GenerationWithHistoryIsFine(t *testing.T) {
	content := []byte(`%PDF-1.4
2 1 obj
<< >>
endobj
startxref
0
%%EOF
3 0 obj
<< >>
endobj
startxref
40
%%EOF`)

	inds, err := NewObjectGenDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	assert.Empty(t, inds)
}

func TestObjectGenDetector_DuplicateDefinitionSameRevision(t *testing.T) {
	content := []byte(`%PDF-1.4
3 0 obj
<< /Amount 100 >>
endobj
3 0 obj
<< /Amount 950 >>
endobj
startxref
0
%%EOF`)

	inds, err := NewObjectGenDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.InDelta(t, 0.6, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "object 3 0 defined 2 times")
}

func TestObjectGenDetector_DuplicateOrderStable(t *testing.T) {
	content := []byte(`%PDF-1.4
7 0 obj
<< /A 1 >>
endobj
5 0 obj
<< /B 1 >>
endobj
2 0 obj
<< /C 1 >>
endobj
7 0 obj
<< /A 2 >>
endobj
5 0 obj
<< /B 2 >>
endobj
2 0 obj
<< /C 2 >>
endobj
startxref
0
%%EOF`)

	// urutan indicator ikut nomor objek, berapa kali pun dijalankan
	for run := 0; run < 4; run++ {
		inds, err := NewObjectGenDetector().Analyze(context.Background(), content)
		require.NoError(t, err)
		require.Len(t, inds, 3)
		assert.Contains(t, inds[0].Evidence, "object 2 0 defined 2 times")
		assert.Contains(t, inds[1].Evidence, "object 5 0 defined 2 times")
		assert.Contains(t, inds[2].Evidence, "object 7 0 defined 2 times")
	}
}

func TestTextLayerDetector_InvisibleRenderMode(t *testing.T) {
	content := []byte(`%PDF-1.4
1 0 obj
<< /Length 40 >>
stream
BT /F1 12 Tf 3 Tr (hidden words) Tj ET
endstream
endobj
startxref
0
%%EOF`)

	inds, err := NewTextLayerDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindInvisibleTextLayer, inds[0].Kind)
	assert.InDelta(t, 0.75, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "invisible render mode")
}

func TestTextLayerDetector_WhiteFill(t *testing.T) {
	content := []byte(`%PDF-1.4
1 0 obj
<< /Length 32 >>
stream
BT 1 1 1 rg (white ink) Tj ET
endstream
endobj
startxref
0
%%EOF`)

	inds, err := NewTextLayerDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.InDelta(t, 0.55, inds[0].Confidence, 1e-9)
	assert.Contains(t, inds[0].Evidence, "white fill")
}

func TestTextLayerDetector_InflatesFlateStreams(t *testing.T) {
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	_, err := zw.Write([]byte("BT 3 Tr (compressed secret) Tj ET"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	content := append([]byte("%PDF-1.5\n1 0 obj\n<< /Length 64 /Filter /FlateDecode >>\nstream\n"), zbuf.Bytes()...)
	content = append(content, []byte("\nendstream\nendobj\nstartxref\n0\n%%EOF")...)

	inds, err := NewTextLayerDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	require.Len(t, inds, 1)
	assert.Equal(t, analysis.KindInvisibleTextLayer, inds[0].Kind)
}

func TestTextLayerDetector_VisibleTextIsFine(t *testing.T) {
	content := []byte(`%PDF-1.4
1 0 obj
<< /Length 30 >>
stream
BT 0 0 0 rg (totals) Tj ET
endstream
endobj
startxref
0
%%EOF`)

	inds, err := NewTextLayerDetector().Analyze(context.Background(), content)
	require.NoError(t, err)
	assert.Empty(t, inds)
}

func TestDetectors_MissingHeader(t *testing.T) {
	junk := bytes.Repeat([]byte("A"), 2048)
	for _, d := range []analysis.Detector{
		NewIncrementalDetector(), NewSignatureDetector(), NewObjectGenDetector(), NewTextLayerDetector(),
	} {
		_, err := d.Analyze(context.Background(), junk)
		assert.ErrorIsf(t, err, analysis.ErrCorruptDocument, "detector %s", d.Name())
	}
}

func TestGapAllZero(t *testing.T) {
	assert.True(t, gapAllZero([]byte("/Contents <0000 0000>")))
	assert.False(t, gapAllZero([]byte("/Contents <00AB00>")))
	assert.False(t, gapAllZero([]byte("/Contents <>")))
	assert.False(t, gapAllZero([]byte("no hex string at all")))
}

func TestScanTextOps_ResetOnBT(t *testing.T) {
	inv, white := scanTextOps([]byte("BT 3 Tr (a) Tj ET BT (b) Tj ET"))
	assert.Equal(t, 1, inv)
	assert.Equal(t, 0, white)
}

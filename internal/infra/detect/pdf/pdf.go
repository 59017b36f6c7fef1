package pdf

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

// Detectors untuk PDF. Parsing byte-level: struktur xref, objek,
// signature ByteRange, dan content stream (Flate).

func checkHeader(content []byte) error {
	// header boleh diawali junk dikit (spec PDF mengizinkan 1024 byte pertama)
	limit := 1024
	if len(content) < limit {
		limit = len(content)
	}
	if !bytes.Contains(content[:limit], []byte("%PDF-")) {
		return fmt.Errorf("%w: missing %%PDF header", analysis.ErrCorruptDocument)
	}
	return nil
}

// ==== INCREMENTAL UPDATES + XREF ====

type IncrementalDetector struct{}

func NewIncrementalDetector() *IncrementalDetector { return &IncrementalDetector{} }

func (d *IncrementalDetector) Name() string { return "pdf/incremental" }

var rxXrefEntry = regexp.MustCompile(`^(\d{10}) (\d{5}) ([nf])`)

func (d *IncrementalDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	if err := checkHeader(content); err != nil {
		return nil, err
	}

	var out []analysis.Indicator
	starts := countToken(content, []byte("startxref"))
	eofs := indexAll(content, []byte("%%EOF"))

	if starts > 1 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindIncrementalUpdate,
			Confidence: 0.5 + 0.25*minf(float64(starts-1)/4, 1),
			Evidence:   fmt.Sprintf("file carries %d revisions (incremental updates); earlier content remains recoverable", starts),
			Detector:   d.Name(),
		})
	}

	// data nyangkut setelah %%EOF terakhir
	if len(eofs) > 0 {
		tail := content[eofs[len(eofs)-1]+len("%%EOF"):]
		trimmed := bytes.TrimRight(tail, "\r\n \t\x00")
		if len(trimmed) > 0 {
			off := int64(eofs[len(eofs)-1] + len("%%EOF"))
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindXrefConflict,
				Confidence: 0.6,
				Evidence:   fmt.Sprintf("%d bytes of data after final %%EOF marker", len(trimmed)),
				Location:   &analysis.Location{ByteOffset: &off},
				Detector:   d.Name(),
			})
		}
	}

	// entri xref yang nunjuk keluar file
	for _, bad := range badXrefOffsets(content) {
		off := int64(bad.tableOff)
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindXrefConflict,
			Confidence: 0.7,
			Evidence:   fmt.Sprintf("xref entry for object %d points to offset %d beyond file size %d", bad.obj, bad.target, len(content)),
			Location:   &analysis.Location{ByteOffset: &off},
			Detector:   d.Name(),
		})
		if len(out) > 6 {
			break
		}
	}
	return out, nil
}

type badXref struct {
	obj      int
	target   int64
	tableOff int
}

func badXrefOffsets(content []byte) []badXref {
	var bad []badXref
	for _, xs := range indexAll(content, []byte("xref")) {
		// pastikan token berdiri sendiri, bukan bagian "startxref"
		if xs >= 5 && bytes.Equal(content[xs-5:xs+4], []byte("startxref")) {
			continue
		}
		rest := content[xs:]
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			continue
		}
		lines := strings.Split(string(rest[nl+1:minint(len(rest), nl+1+4096)]), "\n")
		objNum := -1
		remaining := 0
		for _, line := range lines {
			line = strings.TrimRight(line, "\r")
			if m := rxXrefEntry.FindStringSubmatch(line); m != nil && remaining > 0 {
				off, _ := strconv.ParseInt(m[1], 10, 64)
				if m[3] == "n" && off >= int64(len(content)) {
					bad = append(bad, badXref{obj: objNum, target: off, tableOff: xs})
				}
				objNum++
				remaining--
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 2 {
				start, err1 := strconv.Atoi(fields[0])
				count, err2 := strconv.Atoi(fields[1])
				if err1 == nil && err2 == nil {
					objNum = start
					remaining = count
					continue
				}
			}
			break
		}
	}
	return bad
}

// ==== DIGITAL SIGNATURE ====

type SignatureDetector struct{}

func NewSignatureDetector() *SignatureDetector { return &SignatureDetector{} }

func (d *SignatureDetector) Name() string { return "pdf/signature" }

var rxByteRange = regexp.MustCompile(`/ByteRange\s*\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*\]`)

func (d *SignatureDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	if err := checkHeader(content); err != nil {
		return nil, err
	}

	var out []analysis.Indicator
	for _, m := range rxByteRange.FindAllSubmatchIndex(content, 4) {
		get := func(i int) int64 {
			v, _ := strconv.ParseInt(string(content[m[2*i]:m[2*i+1]]), 10, 64)
			return v
		}
		a, b, c, e := get(1), get(2), get(3), get(4)
		signedEnd := c + e
		off := int64(m[0])

		if a != 0 || b > c || signedEnd > int64(len(content)) {
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindSignatureInvalid,
				Confidence: 0.8,
				Evidence:   fmt.Sprintf("signature ByteRange [%d %d %d %d] is malformed for file of %d bytes", a, b, c, e, len(content)),
				Location:   &analysis.Location{ByteOffset: &off},
				Detector:   d.Name(),
			})
			continue
		}
		if rem := bytes.TrimRight(content[signedEnd:], "\r\n \t\x00"); len(rem) > 0 {
			// file berubah setelah ditandatangani
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindSignatureInvalid,
				Confidence: 0.85,
				Evidence:   fmt.Sprintf("%d bytes appended after the signed ByteRange; signature no longer covers the document", len(rem)),
				Location:   &analysis.Location{ByteOffset: &off},
				Detector:   d.Name(),
			})
		}
		if gapAllZero(content[b:c]) {
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindSignatureInvalid,
				Confidence: 0.5,
				Evidence:   "signature Contents placeholder is zero-filled (signing never completed)",
				Location:   &analysis.Location{ByteOffset: &off},
				Detector:   d.Name(),
			})
		}
	}
	return out, nil
}

// gap ByteRange berisi /Contents <hex>; placeholder kosong = nol semua
func gapAllZero(gap []byte) bool {
	lt := bytes.IndexByte(gap, '<')
	gt := bytes.LastIndexByte(gap, '>')
	if lt < 0 || gt <= lt {
		return false
	}
	hexPart := gap[lt+1 : gt]
	if len(hexPart) == 0 {
		return false
	}
	for _, ch := range hexPart {
		switch ch {
		case '0', '\r', '\n', ' ':
		default:
			return false
		}
	}
	return true
}

// ==== OBJECT GENERATION NUMBERS ====

type ObjectGenDetector struct{}

func NewObjectGenDetector() *ObjectGenDetector { return &ObjectGenDetector{} }

func (d *ObjectGenDetector) Name() string { return "pdf/objectgen" }

var rxObjHeader = regexp.MustCompile(`(?m)(\d+)\s+(\d+)\s+obj\b`)

func (d *ObjectGenDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	if err := checkHeader(content); err != nil {
		return nil, err
	}

	revisions := countToken(content, []byte("startxref"))
	seen := map[[2]int]int{}
	var out []analysis.Indicator

	for _, m := range rxObjHeader.FindAllSubmatchIndex(content, -1) {
		num, _ := strconv.Atoi(string(content[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(content[m[4]:m[5]]))
		key := [2]int{num, gen}
		seen[key]++

		if gen > 0 && revisions <= 1 && len(out) < 4 {
			off := int64(m[0])
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindObjectGeneration,
				Confidence: 0.65,
				Evidence:   fmt.Sprintf("object %d has generation %d but the file claims a single-save history", num, gen),
				Location:   &analysis.Location{ByteOffset: &off},
				Detector:   d.Name(),
			})
		}
	}

	// urutkan by (num, gen) supaya urutan indicator stabil antar run
	dups := make([][2]int, 0, len(seen))
	for key, n := range seen {
		if n > 1 && revisions <= 1 {
			dups = append(dups, key)
		}
	}
	sort.Slice(dups, func(i, j int) bool {
		if dups[i][0] != dups[j][0] {
			return dups[i][0] < dups[j][0]
		}
		return dups[i][1] < dups[j][1]
	})
	for _, key := range dups {
		if len(out) >= 8 {
			break
		}
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindObjectGeneration,
			Confidence: 0.6,
			Evidence:   fmt.Sprintf("object %d %d defined %d times within one revision", key[0], key[1], seen[key]),
			Detector:   d.Name(),
		})
	}
	return out, nil
}

// ==== TEXT LAYER VS VISUAL ====

type TextLayerDetector struct{}

func NewTextLayerDetector() *TextLayerDetector { return &TextLayerDetector{} }

func (d *TextLayerDetector) Name() string { return "pdf/textlayer" }

func (d *TextLayerDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	if err := checkHeader(content); err != nil {
		return nil, err
	}

	var invisibleOps, whiteOps int
	for _, stream := range extractStreams(content) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inv, white := scanTextOps(stream)
		invisibleOps += inv
		whiteOps += white
	}

	var out []analysis.Indicator
	if invisibleOps > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindInvisibleTextLayer,
			Confidence: 0.75,
			Evidence:   fmt.Sprintf("%d text-show operations run in invisible render mode (Tr 3); text layer diverges from visual layer", invisibleOps),
			Detector:   d.Name(),
		})
	}
	if whiteOps > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindInvisibleTextLayer,
			Confidence: 0.55,
			Evidence:   fmt.Sprintf("%d text-show operations painted with white fill", whiteOps),
			Detector:   d.Name(),
		})
	}
	return out, nil
}

const maxStreamDecoded = 8 << 20

// extractStreams ambil isi content stream; Flate di-inflate, filter lain
// dipakai mentah (operator teks kadang masih kebaca)
func extractStreams(content []byte) [][]byte {
	var streams [][]byte
	pos := 0
	for len(streams) < 64 {
		idx := bytes.Index(content[pos:], []byte("stream"))
		if idx < 0 {
			break
		}
		start := pos + idx + len("stream")
		// EOL wajib setelah keyword stream
		if start < len(content) && content[start] == '\r' {
			start++
		}
		if start < len(content) && content[start] == '\n' {
			start++
		}
		end := bytes.Index(content[start:], []byte("endstream"))
		if end < 0 {
			break
		}
		raw := content[start : start+end]

		dictStart := pos + idx - 512
		if dictStart < 0 {
			dictStart = 0
		}
		dict := content[dictStart : pos+idx]
		if bytes.Contains(dict, []byte("/FlateDecode")) {
			if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
				if decoded, err := io.ReadAll(io.LimitReader(zr, maxStreamDecoded)); err == nil {
					raw = decoded
				}
				zr.Close()
			}
		}
		streams = append(streams, raw)
		pos = start + end + len("endstream")
	}
	return streams
}

// scanTextOps hitung operasi Tj/TJ yang jalan di bawah mode render 3
// atau fill putih. Tokenisasi kasar per whitespace.
func scanTextOps(stream []byte) (invisible, white int) {
	fields := strings.Fields(string(stream))
	renderMode := 0
	whiteFill := false
	for i, f := range fields {
		switch f {
		case "Tr":
			if i > 0 {
				if v, err := strconv.Atoi(fields[i-1]); err == nil {
					renderMode = v
				}
			}
		case "rg":
			if i >= 3 {
				r, err1 := strconv.ParseFloat(fields[i-3], 64)
				g, err2 := strconv.ParseFloat(fields[i-2], 64)
				b, err3 := strconv.ParseFloat(fields[i-1], 64)
				if err1 == nil && err2 == nil && err3 == nil {
					whiteFill = r > 0.97 && g > 0.97 && b > 0.97
				}
			}
		case "g":
			if i >= 1 {
				if v, err := strconv.ParseFloat(fields[i-1], 64); err == nil {
					whiteFill = v > 0.97
				}
			}
		case "Tj", "TJ", "'", "\"":
			if renderMode == 3 {
				invisible++
			} else if whiteFill {
				white++
			}
		case "BT":
			renderMode = 0
		}
	}
	return invisible, white
}

func countToken(content, token []byte) int {
	return len(indexAll(content, token))
}

func indexAll(content, token []byte) []int {
	var idxs []int
	pos := 0
	for {
		i := bytes.Index(content[pos:], token)
		if i < 0 {
			return idxs
		}
		idxs = append(idxs, pos+i)
		pos += i + len(token)
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func minint(a, b int) int {
	if a < b {
		return a
	}
	return b
}

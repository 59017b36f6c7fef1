package text

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

// Detectors untuk plain text. Semua pure atas content, tidak ada mutasi.

// ==== ENCODING CONSISTENCY ====

type EncodingDetector struct{}

func NewEncodingDetector() *EncodingDetector { return &EncodingDetector{} }

func (d *EncodingDetector) Name() string { return "text/encoding" }

func (d *EncodingDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	if len(content) == 0 {
		return nil, nil
	}

	var out []analysis.Indicator

	// BOM di tengah file = hasil concat dua sumber beda encoding
	if idx := bytes.Index(content[1:], []byte{0xEF, 0xBB, 0xBF}); idx >= 0 {
		off := int64(idx + 1)
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindMixedEncoding,
			Confidence: 0.7,
			Evidence:   fmt.Sprintf("UTF-8 BOM found mid-file at byte %d", off),
			Location:   &analysis.Location{ByteOffset: &off},
			Detector:   d.Name(),
		})
	}

	// hitung byte sequence yang bukan UTF-8 valid
	invalid := 0
	firstBad := int64(-1)
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
			if firstBad < 0 {
				firstBad = int64(i)
			}
		}
		i += size
	}
	if invalid > 0 {
		ratio := float64(invalid) / float64(len(content))
		conf := 0.5 + 0.4*minf(ratio*50, 1)
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindMixedEncoding,
			Confidence: conf,
			Evidence:   fmt.Sprintf("%d byte sequences invalid as UTF-8, first at byte %d (mixed legacy encoding)", invalid, firstBad),
			Location:   &analysis.Location{ByteOffset: &firstBad},
			Detector:   d.Name(),
		})
	}
	return out, nil
}

// ==== CONTROL / INVISIBLE CHARACTERS ====

type ControlCharDetector struct{}

func NewControlCharDetector() *ControlCharDetector { return &ControlCharDetector{} }

func (d *ControlCharDetector) Name() string { return "text/control" }

// zero-width dan format chars yang tidak kelihatan saat render
var invisibleRunes = map[rune]string{
	'\u200B': "ZERO WIDTH SPACE",
	'\u200C': "ZERO WIDTH NON-JOINER",
	'\u200D': "ZERO WIDTH JOINER",
	'\u2060': "WORD JOINER",
	'\u00AD': "SOFT HYPHEN",
	'\uFEFF': "ZERO WIDTH NO-BREAK SPACE",
}

// bidi override bisa membalik urutan tampilan teks
var bidiRunes = map[rune]string{
	'\u202A': "LEFT-TO-RIGHT EMBEDDING",
	'\u202B': "RIGHT-TO-LEFT EMBEDDING",
	'\u202D': "LEFT-TO-RIGHT OVERRIDE",
	'\u202E': "RIGHT-TO-LEFT OVERRIDE",
	'\u2066': "LEFT-TO-RIGHT ISOLATE",
	'\u2067': "RIGHT-TO-LEFT ISOLATE",
	'\u2068': "FIRST STRONG ISOLATE",
}

func (d *ControlCharDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	var out []analysis.Indicator
	var nControl, nInvisible, nBidi int
	var firstControl, firstInvisible, firstBidi int64 = -1, -1, -1
	var bidiName string

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		switch {
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r', r == 0x7F:
			nControl++
			if firstControl < 0 {
				firstControl = int64(i)
			}
		case invisibleRunes[r] != "":
			// BOM di posisi 0 itu wajar
			if !(r == '\uFEFF' && i == 0) {
				nInvisible++
				if firstInvisible < 0 {
					firstInvisible = int64(i)
				}
			}
		case bidiRunes[r] != "":
			nBidi++
			if firstBidi < 0 {
				firstBidi = int64(i)
				bidiName = bidiRunes[r]
			}
		}
		i += size
	}

	if nControl > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindControlCharacters,
			Confidence: 0.45 + 0.3*minf(float64(nControl)/20, 1),
			Evidence:   fmt.Sprintf("%d control characters outside TAB/LF/CR, first at byte %d", nControl, firstControl),
			Location:   &analysis.Location{ByteOffset: &firstControl},
			Detector:   d.Name(),
		})
	}
	if nInvisible > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindInvisibleChars,
			Confidence: 0.55 + 0.25*minf(float64(nInvisible)/10, 1),
			Evidence:   fmt.Sprintf("%d zero-width/invisible characters, first at byte %d", nInvisible, firstInvisible),
			Location:   &analysis.Location{ByteOffset: &firstInvisible},
			Detector:   d.Name(),
		})
	}
	if nBidi > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindBidiOverride,
			Confidence: 0.85,
			Evidence:   fmt.Sprintf("%d bidirectional control characters (%s first) can reorder rendered text", nBidi, bidiName),
			Location:   &analysis.Location{ByteOffset: &firstBidi},
			Detector:   d.Name(),
		})
	}
	return out, nil
}

// ==== HOMOGLYPH ====

type HomoglyphDetector struct{}

func NewHomoglyphDetector() *HomoglyphDetector { return &HomoglyphDetector{} }

func (d *HomoglyphDetector) Name() string { return "text/homoglyph" }

// lookalike Cyrillic/Greek -> Latin; cukup yang umum dipakai spoofing
var confusables = map[rune]rune{
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	'і': 'i', 'ј': 'j', 'ѕ': 's', 'ԁ': 'd', 'һ': 'h', 'ԛ': 'q', 'ԝ': 'w',
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M', 'Н': 'H', 'О': 'O',
	'Р': 'P', 'С': 'C', 'Т': 'T', 'Х': 'X', 'І': 'I', 'Ѕ': 'S', 'Ј': 'J',
	// Greek lowercase
	'α': 'a', 'ε': 'e', 'ι': 'i', 'κ': 'k', 'ο': 'o', 'ρ': 'p', 'υ': 'u',
	'ν': 'v', 'χ': 'x',
	// Greek uppercase
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H', 'Ι': 'I', 'Κ': 'K',
	'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'Ρ': 'P', 'Τ': 'T', 'Υ': 'Y', 'Χ': 'X',
}

const maxHomoglyphIndicators = 5

func (d *HomoglyphDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	// normalisasi dulu supaya composed/decomposed form tidak bikin false positive
	normalized := norm.NFC.String(string(content))

	var out []analysis.Indicator
	total := 0
	for _, word := range splitWords(normalized) {
		hasLatin, hasConfusable := false, false
		var sample rune
		for _, r := range word.text {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				hasLatin = true
			}
			if _, ok := confusables[r]; ok {
				hasConfusable = true
				sample = r
			}
		}
		if hasLatin && hasConfusable {
			total++
			if len(out) < maxHomoglyphIndicators {
				ln := word.line
				out = append(out, analysis.Indicator{
					Kind:       analysis.KindHomoglyph,
					Confidence: 0.8,
					Evidence:   fmt.Sprintf("mixed-script word %q contains %s lookalike of '%c'", word.text, scriptOf(sample), confusables[sample]),
					Location:   &analysis.Location{Line: &ln},
					Detector:   d.Name(),
				})
			}
		}
	}
	if total > maxHomoglyphIndicators {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindHomoglyph,
			Confidence: 0.85,
			Evidence:   fmt.Sprintf("%d mixed-script words in total (first %d reported individually)", total, maxHomoglyphIndicators),
			Detector:   d.Name(),
		})
	}
	return out, nil
}

type wordPos struct {
	text string
	line int
}

func splitWords(s string) []wordPos {
	var words []wordPos
	var cur strings.Builder
	line, startLine := 1, 1
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, wordPos{text: cur.String(), line: startLine})
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			if cur.Len() == 0 {
				startLine = line
			}
			cur.WriteRune(r)
			continue
		}
		flush()
		if r == '\n' {
			line++
		}
	}
	flush()
	return words
}

func scriptOf(r rune) string {
	switch {
	case unicode.Is(unicode.Cyrillic, r):
		return "Cyrillic"
	case unicode.Is(unicode.Greek, r):
		return "Greek"
	default:
		return "non-Latin"
	}
}

// ==== LINE ENDINGS ====

type LineEndingDetector struct{}

func NewLineEndingDetector() *LineEndingDetector { return &LineEndingDetector{} }

func (d *LineEndingDetector) Name() string { return "text/lineending" }

func (d *LineEndingDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	var crlf, lf, cr int
	firstMinorityLine := -1
	line := 1
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\r':
			if i+1 < len(content) && content[i+1] == '\n' {
				crlf++
				i++
			} else {
				cr++
			}
			line++
		case '\n':
			lf++
			line++
		}
	}
	styles := 0
	for _, n := range []int{crlf, lf, cr} {
		if n > 0 {
			styles++
		}
	}
	if styles < 2 {
		return nil, nil
	}

	total := crlf + lf + cr
	major := maxi(crlf, maxi(lf, cr))
	minority := total - major
	ratio := float64(minority) / float64(total)

	// cari baris pertama yang pakai style minoritas
	majorStyle := dominantStyle(crlf, lf, cr)
	line = 1
	for i := 0; i < len(content) && firstMinorityLine < 0; i++ {
		switch content[i] {
		case '\r':
			style := "cr"
			if i+1 < len(content) && content[i+1] == '\n' {
				style = "crlf"
				i++
			}
			if style != majorStyle {
				firstMinorityLine = line
			}
			line++
		case '\n':
			if majorStyle != "lf" {
				firstMinorityLine = line
			}
			line++
		}
	}

	ind := analysis.Indicator{
		Kind:       analysis.KindLineEndingMix,
		Confidence: 0.35 + 0.35*minf(ratio*4, 1),
		Evidence:   fmt.Sprintf("mixed line endings: %d CRLF, %d LF, %d CR (dominant %s)", crlf, lf, cr, strings.ToUpper(majorStyle)),
		Detector:   d.Name(),
	}
	if firstMinorityLine > 0 {
		ind.Location = &analysis.Location{Line: &firstMinorityLine}
	}
	return []analysis.Indicator{ind}, nil
}

func dominantStyle(crlf, lf, cr int) string {
	switch {
	case crlf >= lf && crlf >= cr:
		return "crlf"
	case lf >= cr:
		return "lf"
	default:
		return "cr"
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}

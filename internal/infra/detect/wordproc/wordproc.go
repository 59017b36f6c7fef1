package wordproc

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

// Detectors untuk dokumen word-processor OOXML (docx/docm).

type docArchive struct {
	runs     []runXML
	core     *coreXML
	app      *appXML
	settings *settingsXML
	styles   *stylesXML
	fonts    *fontTableXML
}

type runXML struct {
	Props *runPropsXML `xml:"rPr"`
	Text  []string     `xml:"t"`
}

type runPropsXML struct {
	Vanish *valAttr   `xml:"vanish"`
	Color  *valAttr   `xml:"color"`
	Fonts  *fontAttr  `xml:"rFonts"`
	Sz     *valAttr   `xml:"sz"`
	Shade  *shadeAttr `xml:"shd"`
}

type valAttr struct {
	Val string `xml:"val,attr"`
}

type fontAttr struct {
	ASCII string `xml:"ascii,attr"`
}

type shadeAttr struct {
	Fill string `xml:"fill,attr"`
}

type coreXML struct {
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
	Revision string `xml:"revision"`
}

type appXML struct {
	TotalTime string `xml:"TotalTime"`
}

type settingsXML struct {
	Rsids struct {
		Vals []valAttr `xml:"rsid"`
	} `xml:"rsids"`
}

type stylesXML struct {
	DocDefaults struct {
		RPrDefault struct {
			RPr struct {
				Fonts *fontAttr `xml:"rFonts"`
				Sz    *valAttr  `xml:"sz"`
			} `xml:"rPr"`
		} `xml:"rPrDefault"`
	} `xml:"docDefaults"`
	Styles []struct {
		RPr struct {
			Fonts *fontAttr `xml:"rFonts"`
		} `xml:"rPr"`
	} `xml:"style"`
}

type fontTableXML struct {
	Fonts []struct {
		Name     string    `xml:"name,attr"`
		AltName  *valAttr  `xml:"altName"`
		Embedded *struct{} `xml:"embedRegular"`
	} `xml:"font"`
}

func openDocx(content []byte) (*docArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable OOXML archive: %v", analysis.ErrCorruptDocument, err)
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docFile, ok := files["word/document.xml"]
	if !ok {
		return nil, fmt.Errorf("%w: word/document.xml missing", analysis.ErrCorruptDocument)
	}
	raw, err := readPart(docFile)
	if err != nil {
		return nil, fmt.Errorf("%w: word/document.xml: %v", analysis.ErrCorruptDocument, err)
	}

	arc := &docArchive{}
	arc.runs, err = collectRuns(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: word/document.xml: %v", analysis.ErrCorruptDocument, err)
	}

	// part opsional: gagal parse ya sudah, nil saja
	if f, ok := files["docProps/core.xml"]; ok {
		var c coreXML
		if raw, err := readPart(f); err == nil && xml.Unmarshal(raw, &c) == nil {
			arc.core = &c
		}
	}
	if f, ok := files["docProps/app.xml"]; ok {
		var a appXML
		if raw, err := readPart(f); err == nil && xml.Unmarshal(raw, &a) == nil {
			arc.app = &a
		}
	}
	if f, ok := files["word/settings.xml"]; ok {
		var s settingsXML
		if raw, err := readPart(f); err == nil && xml.Unmarshal(raw, &s) == nil {
			arc.settings = &s
		}
	}
	if f, ok := files["word/styles.xml"]; ok {
		var s stylesXML
		if raw, err := readPart(f); err == nil && xml.Unmarshal(raw, &s) == nil {
			arc.styles = &s
		}
	}
	if f, ok := files["word/fontTable.xml"]; ok {
		var ft fontTableXML
		if raw, err := readPart(f); err == nil && xml.Unmarshal(raw, &ft) == nil {
			arc.fonts = &ft
		}
	}
	return arc, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, 32<<20))
}

// collectRuns token-walk seluruh dokumen, nangkap run di paragraf,
// tabel, textbox tanpa perlu modelin seluruh schema
func collectRuns(raw []byte) ([]runXML, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var runs []runXML
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return runs, nil
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "r" {
			var r runXML
			if err := dec.DecodeElement(&r, &se); err != nil {
				return nil, err
			}
			runs = append(runs, r)
		}
	}
}

func (r runXML) text() string {
	return strings.Join(r.Text, "")
}

// w:vanish tanpa atribut = true; val="false"/"0" = off
func boolProp(v *valAttr) bool {
	if v == nil {
		return false
	}
	return v.Val != "false" && v.Val != "0"
}

// ==== REVISION HISTORY ====

type RevisionDetector struct{}

func NewRevisionDetector() *RevisionDetector { return &RevisionDetector{} }

func (d *RevisionDetector) Name() string { return "wordproc/revision" }

func (d *RevisionDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	arc, err := openDocx(content)
	if err != nil {
		return nil, err
	}
	if arc.core == nil {
		return nil, nil
	}

	var out []analysis.Indicator
	created, errC := parseDocTime(arc.core.Created)
	modified, errM := parseDocTime(arc.core.Modified)
	if errC == nil && errM == nil && modified.Before(created) {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindRevisionOutOfOrder,
			Confidence: 0.8,
			Evidence: fmt.Sprintf("modified timestamp %s precedes created %s",
				modified.Format(time.RFC3339), created.Format(time.RFC3339)),
			Detector: d.Name(),
		})
	}

	revision := strings.TrimSpace(arc.core.Revision)
	rsids := 0
	if arc.settings != nil {
		rsids = len(arc.settings.Rsids.Vals)
	}
	switch {
	case revision == "1" && rsids > 3:
		// klaim satu kali save tapi jejak sesi edit banyak
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindRevisionGap,
			Confidence: 0.6 + 0.2*minf(float64(rsids)/20, 1),
			Evidence:   fmt.Sprintf("revision counter claims 1 save but %d edit-session ids recorded", rsids),
			Detector:   d.Name(),
		})
	case revision != "" && revision != "1" && rsids == 0 && arc.settings != nil:
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindRevisionGap,
			Confidence: 0.45,
			Evidence:   fmt.Sprintf("revision counter %s but edit-session history is empty (stripped?)", revision),
			Detector:   d.Name(),
		})
	}

	if arc.app != nil && errC == nil && errM == nil {
		total := strings.TrimSpace(arc.app.TotalTime)
		if total == "0" && modified.Sub(created) > 24*time.Hour {
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindTimestampAnomaly,
				Confidence: 0.5,
				Evidence: fmt.Sprintf("zero minutes total editing time across %s between created and modified",
					modified.Sub(created).Round(time.Hour)),
				Detector: d.Name(),
			})
		}
	}
	return out, nil
}

func parseDocTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

// ==== STYLE MISMATCH ====

type StyleDetector struct{}

func NewStyleDetector() *StyleDetector { return &StyleDetector{} }

func (d *StyleDetector) Name() string { return "wordproc/style" }

func (d *StyleDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	arc, err := openDocx(content)
	if err != nil {
		return nil, err
	}
	if arc.styles == nil {
		return nil, nil
	}

	defFont := ""
	if f := arc.styles.DocDefaults.RPrDefault.RPr.Fonts; f != nil {
		defFont = f.ASCII
	}
	styleFonts := map[string]bool{}
	if defFont != "" {
		styleFonts[defFont] = true
	}
	for _, s := range arc.styles.Styles {
		if s.RPr.Fonts != nil && s.RPr.Fonts.ASCII != "" {
			styleFonts[s.RPr.Fonts.ASCII] = true
		}
	}

	textRuns, overrides := 0, 0
	offFonts := map[string]int{}
	for _, r := range arc.runs {
		if r.text() == "" {
			continue
		}
		textRuns++
		if r.Props != nil && r.Props.Fonts != nil && r.Props.Fonts.ASCII != "" && !styleFonts[r.Props.Fonts.ASCII] {
			overrides++
			offFonts[r.Props.Fonts.ASCII]++
		}
	}
	if textRuns == 0 || overrides == 0 {
		return nil, nil
	}

	ratio := float64(overrides) / float64(textRuns)
	// minoritas kecil run dengan font di luar style = pola teks tempelan
	if ratio > 0.5 {
		return nil, nil
	}
	names := make([]string, 0, len(offFonts))
	for n := range offFonts {
		names = append(names, n)
	}
	sort.Strings(names)
	return []analysis.Indicator{{
		Kind:       analysis.KindStyleMismatch,
		Confidence: 0.45 + 0.3*(1-ratio*2),
		Evidence: fmt.Sprintf("%d of %d text runs use fonts outside every defined style (%s) against default %q",
			overrides, textRuns, strings.Join(names, ", "), defFont),
		Detector: d.Name(),
	}}, nil
}

// ==== HIDDEN / WHITE TEXT ====

type HiddenTextDetector struct{}

func NewHiddenTextDetector() *HiddenTextDetector { return &HiddenTextDetector{} }

func (d *HiddenTextDetector) Name() string { return "wordproc/hidden" }

func (d *HiddenTextDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	arc, err := openDocx(content)
	if err != nil {
		return nil, err
	}

	var hiddenChars, whiteChars int
	var hiddenSample, whiteSample string
	for _, r := range arc.runs {
		txt := r.text()
		if strings.TrimSpace(txt) == "" || r.Props == nil {
			continue
		}
		if r.Props.Vanish != nil && boolProp(r.Props.Vanish) {
			hiddenChars += len([]rune(txt))
			if hiddenSample == "" {
				hiddenSample = sample(txt)
			}
		}
		if r.Props.Color != nil && isWhite(r.Props.Color.Val) && !hasDarkShade(r.Props.Shade) {
			whiteChars += len([]rune(txt))
			if whiteSample == "" {
				whiteSample = sample(txt)
			}
		}
	}

	var out []analysis.Indicator
	if hiddenChars > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindHiddenText,
			Confidence: 0.75,
			Evidence:   fmt.Sprintf("%d characters flagged vanish/hidden, starts %q", hiddenChars, hiddenSample),
			Detector:   d.Name(),
		})
	}
	if whiteChars > 0 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindWhiteText,
			Confidence: 0.7,
			Evidence:   fmt.Sprintf("%d characters rendered white on unshaded background, starts %q", whiteChars, whiteSample),
			Detector:   d.Name(),
		})
	}
	return out, nil
}

func isWhite(v string) bool {
	v = strings.ToUpper(strings.TrimSpace(v))
	return v == "FFFFFF" || v == "FFFFFE" || v == "FEFEFE"
}

func hasDarkShade(s *shadeAttr) bool {
	if s == nil {
		return false
	}
	fill := strings.ToUpper(strings.TrimSpace(s.Fill))
	return fill != "" && fill != "AUTO" && !isWhite(fill)
}

func sample(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return string(r)
}

// ==== FONT SUBSTITUTION ====

type FontDetector struct{}

func NewFontDetector() *FontDetector { return &FontDetector{} }

func (d *FontDetector) Name() string { return "wordproc/font" }

func (d *FontDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	arc, err := openDocx(content)
	if err != nil {
		return nil, err
	}
	if arc.fonts == nil {
		return nil, nil
	}

	declared := map[string]bool{}
	substituted := map[string]string{}
	for _, f := range arc.fonts.Fonts {
		declared[f.Name] = true
		if f.AltName != nil && f.AltName.Val != "" && f.Embedded == nil {
			substituted[f.Name] = f.AltName.Val
		}
	}

	used := map[string]bool{}
	for _, r := range arc.runs {
		if r.Props != nil && r.Props.Fonts != nil && r.Props.Fonts.ASCII != "" {
			used[r.Props.Fonts.ASCII] = true
		}
	}

	// walk pakai key terurut supaya urutan indicator stabil antar run
	var out []analysis.Indicator
	for _, name := range sortedKeys(substituted) {
		if used[name] {
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindFontSubstitution,
				Confidence: 0.5,
				Evidence:   fmt.Sprintf("font %q not embedded, renders via substitute %q (layout may differ from origin system)", name, substituted[name]),
				Detector:   d.Name(),
			})
		}
	}
	undeclared := make([]string, 0, len(used))
	for name := range used {
		if !declared[name] {
			undeclared = append(undeclared, name)
		}
	}
	sort.Strings(undeclared)
	for _, name := range undeclared {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindFontSubstitution,
			Confidence: 0.55,
			Evidence:   fmt.Sprintf("font %q used in body but missing from the font table", name),
			Detector:   d.Name(),
		})
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

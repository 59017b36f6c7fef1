package sheet

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

// Detectors untuk spreadsheet OOXML (xlsx/xlsm).

type workbookXML struct {
	Sheets []struct {
		Name  string `xml:"name,attr"`
		RID   string `xml:"id,attr"`
		State string `xml:"state,attr"`
	} `xml:"sheets>sheet"`
}

type relsXML struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type worksheetXML struct {
	Cols []struct {
		Min    int  `xml:"min,attr"`
		Max    int  `xml:"max,attr"`
		Hidden bool `xml:"hidden,attr"`
	} `xml:"cols>col"`
	Rows []struct {
		R      int       `xml:"r,attr"`
		Hidden bool      `xml:"hidden,attr"`
		Cells  []cellXML `xml:"c"`
	} `xml:"sheetData>row"`
	Validations []struct {
		Type     string `xml:"type,attr"`
		Operator string `xml:"operator,attr"`
		Sqref    string `xml:"sqref,attr"`
		Formula1 string `xml:"formula1"`
		Formula2 string `xml:"formula2"`
	} `xml:"dataValidations>dataValidation"`
}

type cellXML struct {
	R string `xml:"r,attr"`
	T string `xml:"t,attr"`
	F string `xml:"f"`
	V string `xml:"v"`
}

// workbook hasil parse minimal dari arsip
type workbook struct {
	sheets []parsedSheet
	macro  bool
}

type parsedSheet struct {
	name  string
	state string
	data  *worksheetXML
}

func openWorkbook(content []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable OOXML archive: %v", analysis.ErrCorruptDocument, err)
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	wb := &workbook{}
	if _, ok := files["xl/vbaProject.bin"]; ok {
		wb.macro = true
	}

	wbFile, ok := files["xl/workbook.xml"]
	if !ok {
		return nil, fmt.Errorf("%w: xl/workbook.xml missing", analysis.ErrCorruptDocument)
	}
	var wx workbookXML
	if err := decodeXML(wbFile, &wx); err != nil {
		return nil, fmt.Errorf("%w: workbook.xml: %v", analysis.ErrCorruptDocument, err)
	}

	// r:id -> target part, untuk mapping nama sheet ke file worksheet
	targets := map[string]string{}
	if relFile, ok := files["xl/_rels/workbook.xml.rels"]; ok {
		var rx relsXML
		if err := decodeXML(relFile, &rx); err == nil {
			for _, r := range rx.Rels {
				targets[r.ID] = r.Target
			}
		}
	}

	for i, s := range wx.Sheets {
		ps := parsedSheet{name: s.Name, state: s.State}
		target := targets[s.RID]
		if target == "" {
			// fallback konvensi penamaan kalau rels hilang
			target = fmt.Sprintf("worksheets/sheet%d.xml", i+1)
		}
		full := path.Clean("xl/" + strings.TrimPrefix(target, "/"))
		if f, ok := files[full]; ok {
			var sx worksheetXML
			if err := decodeXML(f, &sx); err == nil {
				ps.data = &sx
			}
		}
		wb.sheets = append(wb.sheets, ps)
	}
	return wb, nil
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, 32<<20))
	if err != nil {
		return err
	}
	return xml.Unmarshal(raw, v)
}

// ==== HIDDEN SHEETS / ROWS / COLUMNS ====

type HiddenDetector struct{}

func NewHiddenDetector() *HiddenDetector { return &HiddenDetector{} }

func (d *HiddenDetector) Name() string { return "sheet/hidden" }

func (d *HiddenDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	wb, err := openWorkbook(content)
	if err != nil {
		return nil, err
	}

	var out []analysis.Indicator
	for _, s := range wb.sheets {
		switch s.state {
		case "hidden":
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindHiddenSheet,
				Confidence: 0.5,
				Evidence:   fmt.Sprintf("sheet %q is hidden", s.name),
				Location:   &analysis.Location{Sheet: s.name},
				Detector:   d.Name(),
			})
		case "veryHidden":
			// veryHidden cuma bisa diset lewat VBA, bukan UI
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindHiddenSheet,
				Confidence: 0.75,
				Evidence:   fmt.Sprintf("sheet %q is veryHidden (only settable programmatically)", s.name),
				Location:   &analysis.Location{Sheet: s.name},
				Detector:   d.Name(),
			})
		}

		if s.data == nil {
			continue
		}
		hiddenRows, hiddenCols := 0, 0
		firstRef := ""
		for _, r := range s.data.Rows {
			if r.Hidden {
				hiddenRows++
				if firstRef == "" {
					firstRef = fmt.Sprintf("row %d", r.R)
				}
			}
		}
		for _, c := range s.data.Cols {
			if c.Hidden {
				hiddenCols += c.Max - c.Min + 1
				if firstRef == "" {
					firstRef = fmt.Sprintf("column %s", colName(c.Min))
				}
			}
		}
		if hiddenRows+hiddenCols > 0 {
			out = append(out, analysis.Indicator{
				Kind:       analysis.KindHiddenRowsCols,
				Confidence: 0.4 + 0.25*minf(float64(hiddenRows+hiddenCols)/10, 1),
				Evidence:   fmt.Sprintf("sheet %q hides %d rows and %d columns (first: %s)", s.name, hiddenRows, hiddenCols, firstRef),
				Location:   &analysis.Location{Sheet: s.name},
				Detector:   d.Name(),
			})
		}
	}
	return out, nil
}

// ==== MACRO PRESENCE ====

type MacroDetector struct{}

func NewMacroDetector() *MacroDetector { return &MacroDetector{} }

func (d *MacroDetector) Name() string { return "sheet/macro" }

func (d *MacroDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	wb, err := openWorkbook(content)
	if err != nil {
		return nil, err
	}
	if !wb.macro {
		return nil, nil
	}
	return []analysis.Indicator{{
		Kind:       analysis.KindMacroPresent,
		Confidence: 0.6,
		Evidence:   "workbook embeds a VBA project (xl/vbaProject.bin)",
		Detector:   d.Name(),
	}}, nil
}

// ==== FORMULA VS CACHED VALUE ====

type FormulaDetector struct{}

func NewFormulaDetector() *FormulaDetector { return &FormulaDetector{} }

func (d *FormulaDetector) Name() string { return "sheet/formula" }

const maxFormulaIndicators = 8

func (d *FormulaDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	wb, err := openWorkbook(content)
	if err != nil {
		return nil, err
	}

	var out []analysis.Indicator
	for _, s := range wb.sheets {
		if s.data == nil {
			continue
		}
		cells := numericCells(s.data)
		for _, row := range s.data.Rows {
			for _, c := range row.Cells {
				if c.F == "" || c.V == "" || c.T == "s" || c.T == "str" || c.T == "b" {
					continue
				}
				cached, err := strconv.ParseFloat(strings.TrimSpace(c.V), 64)
				if err != nil {
					continue
				}
				computed, err := evalFormula(c.F, cells)
				if err != nil {
					// formula di luar subset evaluator, lewati tanpa bukti
					continue
				}
				if diverges(computed, cached) {
					rel := relDiff(computed, cached)
					if len(out) < maxFormulaIndicators {
						out = append(out, analysis.Indicator{
							Kind:       analysis.KindFormulaDivergence,
							Confidence: 0.55 + 0.4*minf(rel, 1),
							Evidence: fmt.Sprintf("cell %s formula %q recomputes to %s but caches %s",
								c.R, c.F, formatNum(computed), formatNum(cached)),
							Location: &analysis.Location{Sheet: s.name, CellRef: c.R},
							Detector: d.Name(),
						})
					}
				}
			}
		}
	}
	return out, nil
}

// nilai numerik cached per ref, input untuk evaluator
func numericCells(ws *worksheetXML) map[string]float64 {
	cells := map[string]float64{}
	for _, row := range ws.Rows {
		for _, c := range row.Cells {
			if c.T == "s" || c.T == "str" || c.T == "inlineStr" || c.V == "" {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(c.V), 64); err == nil {
				cells[strings.ToUpper(c.R)] = v
			}
		}
	}
	return cells
}

func diverges(computed, cached float64) bool {
	if math.IsNaN(computed) || math.IsInf(computed, 0) {
		return false
	}
	diff := math.Abs(computed - cached)
	if diff <= 1e-9 {
		return false
	}
	// toleransi pembulatan tampilan
	scale := math.Max(math.Abs(computed), math.Abs(cached))
	return diff > 1e-6*math.Max(scale, 1)
}

func relDiff(computed, cached float64) float64 {
	scale := math.Max(math.Abs(computed), math.Abs(cached))
	if scale == 0 {
		return 0
	}
	return math.Abs(computed-cached) / scale
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ==== DATA VALIDATION BYPASS ====

type ValidationDetector struct{}

func NewValidationDetector() *ValidationDetector { return &ValidationDetector{} }

func (d *ValidationDetector) Name() string { return "sheet/validation" }

func (d *ValidationDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	wb, err := openWorkbook(content)
	if err != nil {
		return nil, err
	}

	var out []analysis.Indicator
	for _, s := range wb.sheets {
		if s.data == nil {
			continue
		}
		cells := numericCells(s.data)
		for _, dv := range s.data.Validations {
			if dv.Type != "whole" && dv.Type != "decimal" {
				continue
			}
			lo, err1 := strconv.ParseFloat(strings.TrimSpace(dv.Formula1), 64)
			hi, err2 := strconv.ParseFloat(strings.TrimSpace(dv.Formula2), 64)
			if err1 != nil {
				continue
			}
			for _, ref := range expandSqref(dv.Sqref) {
				v, ok := cells[ref]
				if !ok {
					continue
				}
				violated := false
				switch dv.Operator {
				case "between", "":
					violated = err2 == nil && (v < lo || v > hi)
				case "greaterThan":
					violated = v <= lo
				case "greaterThanOrEqual":
					violated = v < lo
				case "lessThan":
					violated = v >= lo
				case "lessThanOrEqual":
					violated = v > lo
				case "equal":
					violated = v != lo
				case "notEqual":
					violated = v == lo
				}
				if violated {
					out = append(out, analysis.Indicator{
						Kind:       analysis.KindValidationBypass,
						Confidence: 0.7,
						Evidence: fmt.Sprintf("cell %s holds %s, outside its %s validation rule (%s)",
							ref, formatNum(v), dv.Type, describeRule(dv.Operator, dv.Formula1, dv.Formula2)),
						Location: &analysis.Location{Sheet: s.name, CellRef: ref},
						Detector: d.Name(),
					})
				}
			}
		}
	}
	return out, nil
}

func describeRule(op, f1, f2 string) string {
	if op == "" {
		op = "between"
	}
	if f2 != "" {
		return fmt.Sprintf("%s %s and %s", op, f1, f2)
	}
	return fmt.Sprintf("%s %s", op, f1)
}

// expandSqref "A1:B2 D5" -> daftar ref individual, dibatasi biar tidak meledak
func expandSqref(sqref string) []string {
	var refs []string
	for _, part := range strings.Fields(sqref) {
		if !strings.Contains(part, ":") {
			refs = append(refs, strings.ToUpper(part))
			continue
		}
		bounds := strings.SplitN(part, ":", 2)
		c1, r1, ok1 := parseRef(bounds[0])
		c2, r2, ok2 := parseRef(bounds[1])
		if !ok1 || !ok2 {
			continue
		}
		if (c2-c1+1)*(r2-r1+1) > 10000 {
			continue
		}
		for c := c1; c <= c2; c++ {
			for r := r1; r <= r2; r++ {
				refs = append(refs, colName(c)+strconv.Itoa(r))
			}
		}
	}
	return refs
}

// parseRef "BC23" -> (55, 23, true); kolom 1-based
func parseRef(ref string) (int, int, bool) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	i := 0
	col := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, false
	}
	row, err := strconv.Atoi(ref[i:])
	if err != nil || row < 1 {
		return 0, 0, false
	}
	return col, row, true
}

func colName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package sheet

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Evaluator subset formula Excel: aritmetika, ref sel, dan agregat umum.
// Formula di luar subset balikin errUnsupportedFormula dan sel dilewati;
// lebih baik tidak ada bukti daripada bukti palsu.

var errUnsupportedFormula = errors.New("unsupported formula")

type formulaEval struct {
	src   string
	pos   int
	cells map[string]float64
}

func evalFormula(src string, cells map[string]float64) (float64, error) {
	src = strings.TrimPrefix(strings.TrimSpace(src), "=")
	if src == "" || strings.Contains(src, "!") {
		// referensi lintas sheet tidak didukung
		return 0, errUnsupportedFormula
	}
	e := &formulaEval{src: src, cells: cells}
	v, err := e.expr()
	if err != nil {
		return 0, err
	}
	e.skipSpace()
	if e.pos != len(e.src) {
		return 0, errUnsupportedFormula
	}
	return v, nil
}

func (e *formulaEval) expr() (float64, error) {
	v, err := e.term()
	if err != nil {
		return 0, err
	}
	for {
		e.skipSpace()
		switch e.peek() {
		case '+':
			e.pos++
			r, err := e.term()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			e.pos++
			r, err := e.term()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (e *formulaEval) term() (float64, error) {
	v, err := e.factor()
	if err != nil {
		return 0, err
	}
	for {
		e.skipSpace()
		switch e.peek() {
		case '*':
			e.pos++
			r, err := e.factor()
			if err != nil {
				return 0, err
			}
			v *= r
		case '/':
			e.pos++
			r, err := e.factor()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, errUnsupportedFormula
			}
			v /= r
		default:
			return v, nil
		}
	}
}

func (e *formulaEval) factor() (float64, error) {
	e.skipSpace()
	c := e.peek()
	switch {
	case c == '-':
		e.pos++
		v, err := e.factor()
		return -v, err
	case c == '(':
		e.pos++
		v, err := e.expr()
		if err != nil {
			return 0, err
		}
		e.skipSpace()
		if e.peek() != ')' {
			return 0, errUnsupportedFormula
		}
		e.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return e.number()
	case c == '$' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		return e.identOrRef()
	}
	return 0, errUnsupportedFormula
}

func (e *formulaEval) number() (float64, error) {
	start := e.pos
	for e.pos < len(e.src) {
		c := e.src[e.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' {
			e.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(e.src[start:e.pos], 64)
	if err != nil {
		return 0, errUnsupportedFormula
	}
	return v, nil
}

func (e *formulaEval) identOrRef() (float64, error) {
	start := e.pos
	for e.pos < len(e.src) {
		c := e.src[e.pos]
		if c == '$' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			e.pos++
			continue
		}
		break
	}
	word := e.src[start:e.pos]

	e.skipSpace()
	if e.peek() == '(' {
		e.pos++
		return e.callFunc(strings.ToUpper(word))
	}

	ref := strings.ReplaceAll(strings.ToUpper(word), "$", "")
	if _, _, ok := parseRef(ref); !ok {
		return 0, errUnsupportedFormula
	}
	// sel kosong dihitung 0, sama seperti Excel di konteks aritmetika
	return e.cells[ref], nil
}

func (e *formulaEval) callFunc(name string) (float64, error) {
	switch name {
	case "SUM", "AVERAGE", "MIN", "MAX", "COUNT":
		vals, err := e.aggregateArgs()
		if err != nil {
			return 0, err
		}
		return applyAggregate(name, vals)
	case "ABS":
		v, err := e.expr()
		if err != nil {
			return 0, err
		}
		if err := e.expectClose(); err != nil {
			return 0, err
		}
		return math.Abs(v), nil
	case "ROUND":
		v, err := e.expr()
		if err != nil {
			return 0, err
		}
		e.skipSpace()
		digits := 0.0
		if e.peek() == ',' {
			e.pos++
			digits, err = e.expr()
			if err != nil {
				return 0, err
			}
		}
		if err := e.expectClose(); err != nil {
			return 0, err
		}
		mul := math.Pow(10, math.Trunc(digits))
		return math.Round(v*mul) / mul, nil
	}
	return 0, errUnsupportedFormula
}

// aggregateArgs baca argumen sampai ')': range A1:B2 atau expr biasa
func (e *formulaEval) aggregateArgs() ([]float64, error) {
	var vals []float64
	for {
		e.skipSpace()
		if e.peek() == ')' {
			e.pos++
			return vals, nil
		}
		if rangeRefs, ok := e.tryRange(); ok {
			for _, ref := range rangeRefs {
				if v, exists := e.cells[ref]; exists {
					vals = append(vals, v)
				}
			}
		} else {
			v, err := e.expr()
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		e.skipSpace()
		switch e.peek() {
		case ',':
			e.pos++
		case ')':
			e.pos++
			return vals, nil
		default:
			return nil, errUnsupportedFormula
		}
	}
}

// tryRange coba baca "A1:B3" di posisi sekarang; mundur kalau bukan range
func (e *formulaEval) tryRange() ([]string, bool) {
	save := e.pos
	readRef := func() (string, bool) {
		start := e.pos
		for e.pos < len(e.src) {
			c := e.src[e.pos]
			if c == '$' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
				e.pos++
				continue
			}
			break
		}
		ref := strings.ReplaceAll(strings.ToUpper(e.src[start:e.pos]), "$", "")
		if _, _, ok := parseRef(ref); !ok {
			return "", false
		}
		return ref, true
	}

	from, ok := readRef()
	if !ok || e.peek() != ':' {
		e.pos = save
		return nil, false
	}
	e.pos++
	to, ok := readRef()
	if !ok {
		e.pos = save
		return nil, false
	}

	c1, r1, _ := parseRef(from)
	c2, r2, _ := parseRef(to)
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	if (c2-c1+1)*(r2-r1+1) > 10000 {
		e.pos = save
		return nil, false
	}
	var refs []string
	for c := c1; c <= c2; c++ {
		for r := r1; r <= r2; r++ {
			refs = append(refs, colName(c)+strconv.Itoa(r))
		}
	}
	return refs, true
}

func applyAggregate(name string, vals []float64) (float64, error) {
	if name == "COUNT" {
		return float64(len(vals)), nil
	}
	if len(vals) == 0 {
		if name == "SUM" {
			return 0, nil
		}
		return 0, errUnsupportedFormula
	}
	switch name {
	case "SUM":
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s, nil
	case "AVERAGE":
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals)), nil
	case "MIN":
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "MAX":
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}
	return 0, errUnsupportedFormula
}

func (e *formulaEval) expectClose() error {
	e.skipSpace()
	if e.peek() != ')' {
		return errUnsupportedFormula
	}
	e.pos++
	return nil
}

func (e *formulaEval) skipSpace() {
	for e.pos < len(e.src) && (e.src[e.pos] == ' ' || e.src[e.pos] == '\t') {
		e.pos++
	}
}

func (e *formulaEval) peek() byte {
	if e.pos >= len(e.src) {
		return 0
	}
	return e.src[e.pos]
}

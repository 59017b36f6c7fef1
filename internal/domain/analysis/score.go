package analysis

import "sort"

// ScorePolicy bobot kategori + cut point risk level.
// Nilai dibangun sekali dari config saat start, jangan baca global.
type ScorePolicy struct {
	Weights     map[Category]float64
	LowBelow    float64
	MediumBelow float64
	HighBelow   float64
}

// DefaultScorePolicy bobot default, total 1.0
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		Weights: map[Category]float64{
			CategoryContent:   0.35,
			CategoryStructure: 0.25,
			CategoryMetadata:  0.20,
			CategoryVisual:    0.20,
		},
		LowBelow:    0.3,
		MediumBelow: 0.6,
		HighBelow:   0.85,
	}
}

// Score fungsi murni: indicator set identik selalu menghasilkan
// (confidence, risk) identik.
//
// Sub-score kategori = max confidence di kategori itu; satu bukti kuat
// tidak boleh terdilusi banyak cek lemah yang sejenis. Bobot kategori
// dinormalisasi ulang atas kategori yang hadir saja, supaya dokumen satu
// kategori tetap bisa mencapai skor penuh kategorinya. Indicator dengan
// error flag tidak ikut skor, cuma dicatat.
func (p ScorePolicy) Score(indicators []Indicator) (float64, RiskLevel) {
	subs := map[Category]float64{}
	for _, ind := range indicators {
		if ind.Error {
			continue
		}
		c := clamp01(ind.Confidence)
		cat := CategoryOf(ind.Kind)
		if c > subs[cat] {
			subs[cat] = c
		}
	}
	if len(subs) == 0 {
		return 0, p.Risk(0)
	}

	cats := make([]Category, 0, len(subs))
	for cat := range subs {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var weightSum, total float64
	for _, cat := range cats {
		weightSum += p.weight(cat)
	}
	if weightSum <= 0 {
		return 0, p.Risk(0)
	}
	for _, cat := range cats {
		total += subs[cat] * (p.weight(cat) / weightSum)
	}
	total = clamp01(total)
	return total, p.Risk(total)
}

// Risk diskretisasi confidence ke bucket
func (p ScorePolicy) Risk(confidence float64) RiskLevel {
	switch {
	case confidence < p.LowBelow:
		return RiskLow
	case confidence < p.MediumBelow:
		return RiskMedium
	case confidence < p.HighBelow:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func (p ScorePolicy) weight(cat Category) float64 {
	if w, ok := p.Weights[cat]; ok {
		return w
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

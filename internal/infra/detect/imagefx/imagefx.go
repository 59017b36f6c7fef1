package imagefx

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/analysis"
)

// Detectors forensik image: copy-move, noise, kompresi, arah cahaya.
// Semua kerja di grayscale float, downscale dulu kalau kegedean.

const maxDim = 1024

type gray struct {
	pix  []float64
	w, h int
	// faktor skala balik ke koordinat asli
	scale int
}

func decodeGray(content []byte) (*gray, error) {
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: image decode: %v", analysis.ErrCorruptDocument, err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", analysis.ErrCorruptDocument)
	}

	scale := 1
	for w/scale > maxDim || h/scale > maxDim {
		scale++
	}
	gw, gh := w/scale, h/scale
	g := &gray{pix: make([]float64, gw*gh), w: gw, h: gh, scale: scale}

	for y := 0; y < gh; y++ {
		for x := 0; x < gw; x++ {
			// box average per sel scale x scale
			var sum float64
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					r, gc, bl, _ := img.At(b.Min.X+x*scale+dx, b.Min.Y+y*scale+dy).RGBA()
					sum += 0.299*float64(r>>8) + 0.587*float64(gc>>8) + 0.114*float64(bl>>8)
				}
			}
			g.pix[y*gw+x] = sum / float64(scale*scale)
		}
	}
	return g, nil
}

func (g *gray) at(x, y int) float64 { return g.pix[y*g.w+x] }

// ==== COPY-MOVE (BLOCK MATCHING) ====

type CopyMoveDetector struct{}

func NewCopyMoveDetector() *CopyMoveDetector { return &CopyMoveDetector{} }

func (d *CopyMoveDetector) Name() string { return "image/copymove" }

const (
	blockSize   = 16
	blockStride = 8
	minOffset   = 24
	minVotes    = 10
)

func (d *CopyMoveDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	g, err := decodeGray(content)
	if err != nil {
		return nil, err
	}
	if g.w < blockSize*3 || g.h < blockSize*3 {
		return nil, nil
	}

	type blockPos struct{ x, y int }
	buckets := map[uint64][]blockPos{}

	for y := 0; y+blockSize <= g.h; y += blockStride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x+blockSize <= g.w; x += blockStride {
			key, flat := blockSignature(g, x, y)
			if flat {
				// area polos (langit, kertas kosong) match di mana-mana, skip
				continue
			}
			buckets[key] = append(buckets[key], blockPos{x, y})
		}
	}

	// voting offset antar pasangan blok yang signaturenya sama
	type offset struct{ dx, dy int }
	votes := map[offset]int{}
	anchor := map[offset]blockPos{}
	for _, blocks := range buckets {
		if len(blocks) < 2 || len(blocks) > 64 {
			continue
		}
		for i := 0; i < len(blocks); i++ {
			for j := i + 1; j < len(blocks); j++ {
				dx := blocks[j].x - blocks[i].x
				dy := blocks[j].y - blocks[i].y
				if dx*dx+dy*dy < minOffset*minOffset {
					continue
				}
				o := offset{dx, dy}
				votes[o]++
				// anchor = posisi raster terkecil supaya hasil stabil antar run
				if a, ok := anchor[o]; !ok || blocks[i].y < a.y || (blocks[i].y == a.y && blocks[i].x < a.x) {
					anchor[o] = blocks[i]
				}
			}
		}
	}

	best, bestVotes := offset{}, 0
	for o, v := range votes {
		if v > bestVotes || (v == bestVotes && v > 0 && (o.dy < best.dy || (o.dy == best.dy && o.dx < best.dx))) {
			best, bestVotes = o, v
		}
	}
	if bestVotes < minVotes {
		return nil, nil
	}

	a := anchor[best]
	s := g.scale
	return []analysis.Indicator{{
		Kind:       analysis.KindCopyMove,
		Confidence: 0.6 + 0.3*minf(float64(bestVotes)/60, 1),
		Evidence: fmt.Sprintf("%d block pairs share identical content at displacement (%d,%d)",
			bestVotes, best.dx*s, best.dy*s),
		Location: &analysis.Location{Region: &analysis.Region{
			X: a.x * s, Y: a.y * s, W: blockSize * s, H: blockSize * s,
		}},
		Detector: d.Name(),
	}}, nil
}

// blockSignature kuantisasi mean 4 kuadran + gradien, cukup stabil
// terhadap noise ringan tapi spesifik per konten
func blockSignature(g *gray, bx, by int) (uint64, bool) {
	half := blockSize / 2
	var q [4]float64
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			v := g.at(bx+x, by+y)
			idx := 0
			if x >= half {
				idx++
			}
			if y >= half {
				idx += 2
			}
			q[idx] += v
		}
	}
	n := float64(half * half)
	mean := (q[0] + q[1] + q[2] + q[3]) / (4 * n)

	var variance float64
	for i := range q {
		q[i] /= n
		dv := q[i] - mean
		variance += dv * dv
	}
	if variance < 4 {
		return 0, true
	}

	// kuantisasi kasar 8 level per kuadran
	var key uint64
	for i := range q {
		lvl := uint64(q[i] / 32)
		if lvl > 7 {
			lvl = 7
		}
		key = key<<3 | lvl
	}
	gq := uint64((q[1] + q[3] - q[0] - q[2]) / 16)
	key = key<<8 | (gq & 0xFF)
	return key, false
}

// ==== NOISE VARIANCE ====

type NoiseDetector struct{}

func NewNoiseDetector() *NoiseDetector { return &NoiseDetector{} }

func (d *NoiseDetector) Name() string { return "image/noise" }

func (d *NoiseDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	g, err := decodeGray(content)
	if err != nil {
		return nil, err
	}
	div := gridDiv(g)
	if div < 2 {
		return nil, nil
	}

	levels := regionNoise(g, div)
	lo, hi := math.Inf(1), 0.0
	var hiRegion analysis.Region
	cw, ch := g.w/div, g.h/div
	for i, lvl := range levels {
		if lvl < 0 {
			continue
		}
		if lvl < lo {
			lo = lvl
		}
		if lvl > hi {
			hi = lvl
			s := g.scale
			hiRegion = analysis.Region{X: (i % div) * cw * s, Y: (i / div) * ch * s, W: cw * s, H: ch * s}
		}
	}
	if math.IsInf(lo, 1) || lo < 0.3 || hi < 1.5 {
		return nil, nil
	}
	ratio := hi / lo
	if ratio < 3 {
		return nil, nil
	}

	return []analysis.Indicator{{
		Kind:       analysis.KindNoiseInconsistency,
		Confidence: 0.4 + 0.3*minf((ratio-3)/6, 1),
		Evidence: fmt.Sprintf("noise floor varies %.1fx across regions (%.2f vs %.2f), consistent with composited content",
			ratio, lo, hi),
		Location: &analysis.Location{Region: &hiRegion},
		Detector: d.Name(),
	}}, nil
}

// estimasi noise per region: mean |laplacian| dengan koreksi tekstur
func regionNoise(g *gray, div int) []float64 {
	cw, ch := g.w/div, g.h/div
	levels := make([]float64, div*div)
	for ry := 0; ry < div; ry++ {
		for rx := 0; rx < div; rx++ {
			var sum float64
			n := 0
			for y := ry*ch + 1; y < (ry+1)*ch-1; y++ {
				for x := rx*cw + 1; x < (rx+1)*cw-1; x++ {
					lap := 4*g.at(x, y) - g.at(x-1, y) - g.at(x+1, y) - g.at(x, y-1) - g.at(x, y+1)
					sum += math.Abs(lap)
					n++
				}
			}
			if n == 0 {
				levels[ry*div+rx] = -1
				continue
			}
			levels[ry*div+rx] = sum / float64(n)
		}
	}
	return levels
}

func gridDiv(g *gray) int {
	d := minint(g.w, g.h) / 96
	if d > 4 {
		return 4
	}
	return d
}

// ==== COMPRESSION ARTIFACTS ====

type CompressionDetector struct{}

func NewCompressionDetector() *CompressionDetector { return &CompressionDetector{} }

func (d *CompressionDetector) Name() string { return "image/compression" }

func (d *CompressionDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	g, err := decodeGray(content)
	if err != nil {
		return nil, err
	}
	// blockiness 8x8 cuma kebaca di resolusi asli
	if g.scale != 1 {
		return nil, nil
	}
	div := gridDiv(g)
	if div < 2 {
		return nil, nil
	}

	scores := regionBlockiness(g, div)
	lo, hi := math.Inf(1), 0.0
	var hiRegion analysis.Region
	cw, ch := g.w/div, g.h/div
	valid := 0
	for i, s := range scores {
		if s < 0 {
			continue
		}
		valid++
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
			hiRegion = analysis.Region{X: (i % div) * cw, Y: (i / div) * ch, W: cw, H: ch}
		}
	}
	if valid < 4 || hi < 1.2 {
		return nil, nil
	}

	var out []analysis.Indicator
	if lo > 0.05 && hi/lo > 2.5 {
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindCompressionSeam,
			Confidence: 0.45 + 0.3*minf((hi/lo-2.5)/5, 1),
			Evidence: fmt.Sprintf("8px-grid compression signature varies %.1fx across regions, regions were compressed separately",
				hi/lo),
			Location: &analysis.Location{Region: &hiRegion},
			Detector: d.Name(),
		})
	}
	if !bytes.HasPrefix(content, []byte{0xFF, 0xD8}) && hi > 2.0 {
		// file lossless tapi bawa jejak blok JPEG = pernah lewat resave
		out = append(out, analysis.Indicator{
			Kind:       analysis.KindCompressionSeam,
			Confidence: 0.45,
			Evidence:   "lossless container carries strong 8px JPEG block artifacts (recompressed composite)",
			Detector:   d.Name(),
		})
	}
	return out, nil
}

// blockiness: beda rata-rata di boundary kelipatan 8 vs interior.
// >1 berarti boundary lebih "patah" daripada interior.
func regionBlockiness(g *gray, div int) []float64 {
	cw, ch := g.w/div, g.h/div
	scores := make([]float64, div*div)
	for ry := 0; ry < div; ry++ {
		for rx := 0; rx < div; rx++ {
			var boundary, interior float64
			var nb, ni int
			for y := ry * ch; y < (ry+1)*ch; y++ {
				for x := rx*cw + 1; x < (rx+1)*cw; x++ {
					d := math.Abs(g.at(x, y) - g.at(x-1, y))
					if x%8 == 0 {
						boundary += d
						nb++
					} else {
						interior += d
						ni++
					}
				}
			}
			if nb == 0 || ni == 0 || interior == 0 {
				scores[ry*div+rx] = -1
				continue
			}
			scores[ry*div+rx] = (boundary / float64(nb)) / (interior / float64(ni))
		}
	}
	return scores
}

// ==== LIGHTING DIRECTION ====

type LightingDetector struct{}

func NewLightingDetector() *LightingDetector { return &LightingDetector{} }

func (d *LightingDetector) Name() string { return "image/lighting" }

func (d *LightingDetector) Analyze(ctx context.Context, content []byte) ([]analysis.Indicator, error) {
	g, err := decodeGray(content)
	if err != nil {
		return nil, err
	}
	div := gridDiv(g)
	if div < 2 {
		return nil, nil
	}

	cw, ch := g.w/div, g.h/div
	type dir struct {
		angle float64
		mag   float64
	}
	var dirs []dir
	var regions []analysis.Region
	for ry := 0; ry < div; ry++ {
		for rx := 0; rx < div; rx++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var sx, sy, mag float64
			for y := ry*ch + 1; y < (ry+1)*ch-1; y++ {
				for x := rx*cw + 1; x < (rx+1)*cw-1; x++ {
					gx := g.at(x+1, y) - g.at(x-1, y)
					gy := g.at(x, y+1) - g.at(x, y-1)
					m := math.Hypot(gx, gy)
					// cuma gradien halus (shading), bukan edge tajam
					if m < 1 || m > 24 {
						continue
					}
					sx += gx
					sy += gy
					mag += m
				}
			}
			if mag < float64(cw*ch)/8 {
				continue
			}
			s := g.scale
			dirs = append(dirs, dir{angle: math.Atan2(sy, sx), mag: mag})
			regions = append(regions, analysis.Region{X: rx * cw * s, Y: ry * ch * s, W: cw * s, H: ch * s})
		}
	}
	if len(dirs) < 3 {
		return nil, nil
	}

	// outlier = region yang arah shading-nya jauh dari rata-rata sirkular
	var cx, cy float64
	for _, d := range dirs {
		cx += math.Cos(d.angle)
		cy += math.Sin(d.angle)
	}
	meanAngle := math.Atan2(cy, cx)
	worst, worstIdx := 0.0, -1
	for i, d := range dirs {
		diff := math.Abs(angleDiff(d.angle, meanAngle))
		if diff > worst {
			worst, worstIdx = diff, i
		}
	}
	if worst < math.Pi*100/180 {
		return nil, nil
	}

	return []analysis.Indicator{{
		Kind:       analysis.KindLightingMismatch,
		Confidence: 0.4 + 0.25*minf((worst-math.Pi*100/180)/(math.Pi*80/180), 1),
		Evidence: fmt.Sprintf("region shading direction deviates %.0f degrees from scene average",
			worst*180/math.Pi),
		Location: &analysis.Location{Region: &regions[worstIdx]},
		Detector: d.Name(),
	}}, nil
}

func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
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

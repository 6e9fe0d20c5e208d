// Package vision locates UI controls inside screenshots by normalised
// cross-correlation template matching.
package vision

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
)

// ErrTemplateTooLarge is returned when the template does not fit in the image.
var ErrTemplateTooLarge = errors.New("template larger than image")

// Match is the best placement of a template inside an image.
type Match struct {
	X, Y  int // top-left corner in image coordinates
	W, H  int // template size
	Score float64
}

// Center is where a click on the matched control should land.
func (m Match) Center() image.Point {
	return image.Pt(m.X+m.W/2, m.Y+m.H/2)
}

// Rect is the matched region.
func (m Match) Rect() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.W, m.Y+m.H)
}

// Matcher computes TM_CCOEFF_NORMED scores. The zero value searches every
// placement at full resolution; NewMatcher enables the coarse-to-fine search.
type Matcher struct {
	// ExhaustiveLimit is the number of multiply-adds below which the full
	// resolution search runs directly. Zero means always exhaustive.
	ExhaustiveLimit int
	// MinCoarseSide is the smallest template side allowed after downscaling.
	MinCoarseSide int
	// Candidates is how many coarse peaks are refined at full resolution.
	Candidates int
}

// NewMatcher returns a matcher tuned for browser screenshots.
func NewMatcher() *Matcher {
	return &Matcher{
		ExhaustiveLimit: 40_000_000,
		MinCoarseSide:   8,
		Candidates:      5,
	}
}

// Best returns the highest scoring placement of tmpl in img.
func (m *Matcher) Best(img, tmpl *Gray) (Match, error) {
	if tmpl.W == 0 || tmpl.H == 0 {
		return Match{}, errors.New("empty template")
	}
	if tmpl.W > img.W || tmpl.H > img.H {
		return Match{}, fmt.Errorf("%w: template %dx%d, image %dx%d",
			ErrTemplateTooLarge, tmpl.W, tmpl.H, img.W, img.H)
	}

	work := (img.W - tmpl.W + 1) * (img.H - tmpl.H + 1) * tmpl.W * tmpl.H
	factor := m.coarseFactor(tmpl)
	if m.ExhaustiveLimit == 0 || work <= m.ExhaustiveLimit || factor == 1 {
		c := newCorrelator(img, tmpl)
		return c.search(0, 0, img.W-tmpl.W, img.H-tmpl.H), nil
	}
	return m.coarseToFine(img, tmpl, factor), nil
}

// Find reports the best placement when its score reaches threshold.
func (m *Matcher) Find(img, tmpl *Gray, threshold float64) (Match, bool, error) {
	best, err := m.Best(img, tmpl)
	if err != nil {
		return Match{}, false, err
	}
	return best, best.Score >= threshold, nil
}

func (m *Matcher) coarseFactor(tmpl *Gray) int {
	minSide := m.MinCoarseSide
	if minSide < 1 {
		minSide = 1
	}
	for _, f := range []int{4, 2} {
		if tmpl.W/f >= minSide && tmpl.H/f >= minSide {
			return f
		}
	}
	return 1
}

type peak struct {
	x, y  int
	score float64
}

// coarseToFine searches a downscaled copy and refines the best coarse peaks
// at full resolution. A placement at (x, y) only lines up with the coarse
// grid whose origin is (x mod factor, y mod factor), so every phase of the
// grid is searched.
func (m *Matcher) coarseToFine(img, tmpl *Gray, factor int) Match {
	// Whole blocks only, so each coarse pixel averages the same source
	// pixels in the template and in an aligned window.
	tw, th := tmpl.W/factor*factor, tmpl.H/factor*factor
	ctmpl := tmpl.Sub(image.Rect(0, 0, tw, th)).Downscale(factor)
	sep := max(ctmpl.W, ctmpl.H) / 2

	fc := newCorrelator(img, tmpl)
	best := Match{W: tmpl.W, H: tmpl.H, Score: math.Inf(-1)}
	radius := factor
	for py := 0; py < factor; py++ {
		for px := 0; px < factor; px++ {
			w := (img.W - px) / factor * factor
			h := (img.H - py) / factor * factor
			cimg := img.Sub(image.Rect(px, py, px+w, py+h)).Downscale(factor)
			if ctmpl.W > cimg.W || ctmpl.H > cimg.H {
				continue
			}

			cc := newCorrelator(cimg, ctmpl)
			for _, p := range topPeaks(cc, m.candidates(), sep) {
				x, y := p.x*factor+px, p.y*factor+py
				x0 := clamp(x-radius, 0, img.W-tmpl.W)
				x1 := clamp(x+radius, 0, img.W-tmpl.W)
				y0 := clamp(y-radius, 0, img.H-tmpl.H)
				y1 := clamp(y+radius, 0, img.H-tmpl.H)
				if r := fc.search(x0, y0, x1, y1); r.Score > best.Score {
					best = r
				}
			}
		}
	}

	// No phase fit the template; search exhaustively.
	if math.IsInf(best.Score, -1) {
		return fc.search(0, 0, img.W-tmpl.W, img.H-tmpl.H)
	}
	return best
}

func (m *Matcher) candidates() int {
	if m.Candidates < 1 {
		return 1
	}
	return m.Candidates
}

// topPeaks scans the full coarse map and keeps the n best placements that
// are at least sep apart.
func topPeaks(c *correlator, n, sep int) []peak {
	var all []peak
	for y := 0; y <= c.img.H-c.h; y++ {
		for x := 0; x <= c.img.W-c.w; x++ {
			all = append(all, peak{x, y, c.score(x, y)})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })

	var out []peak
	for _, p := range all {
		near := false
		for _, q := range out {
			if abs(p.x-q.x) < sep && abs(p.y-q.y) < sep {
				near = true
				break
			}
		}
		if near {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out
}

// correlator holds the per-template terms and the image integral tables.
type correlator struct {
	img   *Gray
	w, h  int
	n     float64
	tz    []float64 // zero-mean template
	tNorm float64   // sum of squares of tz
	sum   []float64 // (W+1)*(H+1) integral of intensities
	sum2  []float64 // integral of squared intensities
}

func newCorrelator(img, tmpl *Gray) *correlator {
	c := &correlator{
		img: img,
		w:   tmpl.W,
		h:   tmpl.H,
		n:   float64(tmpl.W * tmpl.H),
	}

	var mean float64
	for _, v := range tmpl.Pix {
		mean += v
	}
	mean /= c.n
	c.tz = make([]float64, len(tmpl.Pix))
	for i, v := range tmpl.Pix {
		d := v - mean
		c.tz[i] = d
		c.tNorm += d * d
	}

	stride := img.W + 1
	c.sum = make([]float64, stride*(img.H+1))
	c.sum2 = make([]float64, stride*(img.H+1))
	for y := 0; y < img.H; y++ {
		var row, row2 float64
		for x := 0; x < img.W; x++ {
			v := img.Pix[y*img.W+x]
			row += v
			row2 += v * v
			c.sum[(y+1)*stride+x+1] = c.sum[y*stride+x+1] + row
			c.sum2[(y+1)*stride+x+1] = c.sum2[y*stride+x+1] + row2
		}
	}
	return c
}

func (c *correlator) rect(table []float64, x, y int) float64 {
	stride := c.img.W + 1
	x1, y1 := x+c.w, y+c.h
	return table[y1*stride+x1] - table[y*stride+x1] - table[y1*stride+x] + table[y*stride+x]
}

const flatEpsilon = 1e-9

// score is the normalised correlation coefficient at one placement.
// A flat template or a flat window carries no signal and scores 0.
func (c *correlator) score(x, y int) float64 {
	if c.tNorm < flatEpsilon {
		return 0
	}
	s := c.rect(c.sum, x, y)
	s2 := c.rect(c.sum2, x, y)
	winVar := s2 - s*s/c.n
	if winVar < flatEpsilon*c.n {
		return 0
	}

	// sum(T' * I) equals sum(T' * I') because T' has zero mean.
	var num float64
	for j := 0; j < c.h; j++ {
		trow := c.tz[j*c.w : (j+1)*c.w]
		irow := c.img.Pix[(y+j)*c.img.W+x : (y+j)*c.img.W+x+c.w]
		for i, tv := range trow {
			num += tv * irow[i]
		}
	}

	r := num / math.Sqrt(c.tNorm*winVar)
	return math.Max(-1, math.Min(1, r))
}

// search returns the best placement with top-left in [x0,x1]×[y0,y1].
// Ties keep the first placement in row-major order.
func (c *correlator) search(x0, y0, x1, y1 int) Match {
	best := Match{X: x0, Y: y0, W: c.w, H: c.h, Score: math.Inf(-1)}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if s := c.score(x, y); s > best.Score {
				best.X, best.Y, best.Score = x, y, s
			}
		}
	}
	return best
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

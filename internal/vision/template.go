package vision

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Template is a named reference image of a control.
type Template struct {
	Name string
	Gray *Gray
}

// LoadTemplate reads a template image from disk.
func LoadTemplate(path string) (*Template, error) {
	g, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Template{Name: filepath.Base(path), Gray: g}, nil
}

// Attempt records how one template scored during FindFirst.
type Attempt struct {
	Template string
	Score    float64
	Err      error
}

// Result is the outcome of matching a list of alternative templates.
type Result struct {
	Match
	Template string // name of the template that matched
	Found    bool
	Attempts []Attempt
}

// FindFirst tries each template in order and returns the first whose best
// score reaches threshold. Later templates are not evaluated once one
// matches, even if they would score higher.
//
// A template that cannot be evaluated (for instance because it is larger than
// the image) is recorded in Attempts and skipped. The returned error is
// non-nil only when nothing matched and at least one template failed.
func (m *Matcher) FindFirst(img *Gray, templates []*Template, threshold float64) (Result, error) {
	var res Result
	var errs []error
	for _, t := range templates {
		if t == nil || t.Gray == nil {
			continue
		}
		best, err := m.Best(img, t.Gray)
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Template: t.Name, Err: err})
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		res.Attempts = append(res.Attempts, Attempt{Template: t.Name, Score: best.Score})
		if best.Score >= threshold {
			res.Match = best
			res.Template = t.Name
			res.Found = true
			return res, nil
		}
	}
	return res, errors.Join(errs...)
}

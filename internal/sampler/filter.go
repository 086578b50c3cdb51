package sampler

import (
	"fmt"

	"github.com/nishimvki/coverdiscover/internal/domain"
)

// Filter decides whether a fetched track is kept. Every enabled rule must
// hold; the zero value accepts everything.
type Filter struct {
	RequireImage       bool
	RequireSquareImage bool
	RequirePreview     bool
	LimitPopularity    bool
	MaxPopularity      int
}

// Rule is a single named clause of a Filter
type Rule struct {
	Name  string
	Match func(domain.Track) bool
}

func hasImage(t domain.Track) bool {
	return len(t.Album.Images) > 0
}

func squareImage(t domain.Track) bool {
	img, ok := t.FirstImage()
	return ok && img.Square()
}

func hasPreview(t domain.Track) bool {
	return t.PreviewURL != ""
}

func popularityAtMost(ceiling int) func(domain.Track) bool {
	return func(t domain.Track) bool {
		return t.Popularity <= ceiling
	}
}

// Rules returns the enabled clauses
func (f Filter) Rules() []Rule {
	var rules []Rule
	if f.RequireImage {
		rules = append(rules, Rule{Name: "has_image", Match: hasImage})
	}
	if f.RequireSquareImage {
		rules = append(rules, Rule{Name: "square_image", Match: squareImage})
	}
	if f.RequirePreview {
		rules = append(rules, Rule{Name: "has_preview", Match: hasPreview})
	}
	if f.LimitPopularity {
		rules = append(rules, Rule{
			Name:  fmt.Sprintf("popularity<=%d", f.MaxPopularity),
			Match: popularityAtMost(f.MaxPopularity),
		})
	}
	return rules
}

func (f Filter) Accept(t domain.Track) bool {
	for _, r := range f.Rules() {
		if !r.Match(t) {
			return false
		}
	}
	return true
}

// Validate rejects a popularity ceiling outside the provider's 0-100 scale
func (f Filter) Validate() error {
	if f.LimitPopularity && (f.MaxPopularity < 0 || f.MaxPopularity > 100) {
		return fmt.Errorf("popularity ceiling must be within 0-100, got %d", f.MaxPopularity)
	}
	return nil
}

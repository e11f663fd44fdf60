// Package catalog turns the public listing feed into what a visitor sees:
// use-case filter options, the filtered list and Finland-first ordering.
package catalog

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
)

// Option is one entry of the use-case selector.
// Value is what Filter expects, Label what is displayed.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AllOption is the unfiltered default, always listed first.
var AllOption = Option{Value: "", Label: "All Use Cases"}

// Prepare drops nil and inactive entries. The API already filters inactive
// listings; this keeps a misbehaving backend from leaking them.
func Prepare(listings []*domain.Listing) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil || !l.Active {
			continue
		}
		out = append(out, l)
	}
	return out
}

// UseCaseOptions derives the distinct use-case tags of listings.
//
// Tags are compared case-insensitively. The label is the first spelling seen,
// replaced by any later spelling that starts with an upper-case character.
// Options are ordered by label.
func UseCaseOptions(listings []*domain.Listing) []Option {
	labels := make(map[string]string)
	order := make([]string, 0)

	for _, l := range listings {
		if l == nil {
			continue
		}
		for _, tag := range domain.SplitUseCases(l.UseCase) {
			key := domain.FoldTag(tag)
			_, seen := labels[key]
			if !seen {
				order = append(order, key)
			}
			if !seen || startsUpper(tag) {
				labels[key] = tag
			}
		}
	}

	options := make([]Option, 0, len(order))
	for _, key := range order {
		options = append(options, Option{Value: labels[key], Label: labels[key]})
	}

	c := collate.New(language.Und)
	sort.SliceStable(options, func(i, j int) bool {
		if r := c.CompareString(options[i].Label, options[j].Label); r != 0 {
			return r < 0
		}
		return options[i].Label < options[j].Label
	})
	return options
}

// Options is AllOption followed by UseCaseOptions.
func Options(listings []*domain.Listing) []Option {
	return append([]Option{AllOption}, UseCaseOptions(listings)...)
}

// startsUpper reports whether the first character is unchanged by upper-casing,
// which holds for capitals but also for digits and symbols.
func startsUpper(tag string) bool {
	r, _ := utf8.DecodeRuneInString(tag)
	if r == utf8.RuneError {
		return false
	}
	return unicode.ToUpper(r) == r
}

// Filter keeps the listings tagged with selected (case-insensitive).
// An empty selection keeps everything.
func Filter(listings []*domain.Listing, selected string) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(listings))
	if domain.FoldTag(selected) == "" {
		return append(out, listings...)
	}
	for _, l := range listings {
		if domain.HasUseCase(l, selected) {
			out = append(out, l)
		}
	}
	return out
}

// SortFinlandFirst returns a copy ordered with Finnish listings first.
// The relative order inside each group is preserved.
func SortFinlandFirst(listings []*domain.Listing) []*domain.Listing {
	out := make([]*domain.Listing, len(listings))
	copy(out, listings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsFinnish() && !out[j].IsFinnish()
	})
	return out
}

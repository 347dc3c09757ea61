// Package moderation provides client-side muting of unwanted chat content.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"ttv-chat/domain"
)

// MuteFilter masks muted terms in incoming chat lines before they reach
// the durable channel. Matching is case-insensitive, ignores punctuation
// and spacing, and folds common leet substitutions so "b4dw0rd" still
// matches a muted "badword".
type MuteFilter struct {
	machine *goahocorasick.Machine
	mask    rune
}

// NewMuteFilter builds the Aho-Corasick automaton over the normalized
// muted terms. Terms that normalize to nothing are dropped.
func NewMuteFilter(terms []string) (*MuteFilter, error) {
	patterns := make([][]rune, 0, len(terms))
	for _, term := range terms {
		if normalized := normalize([]rune(term), nil); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &MuteFilter{machine: machine, mask: '*'}, nil
}

// Apply returns msg with every muted span masked. Message is a value, so
// the caller's copy is never touched.
func (f *MuteFilter) Apply(msg domain.Message) domain.Message {
	orig := []rune(msg.Content)
	var origIdx []int
	subject := normalize(orig, &origIdx)
	if len(subject) == 0 {
		return msg
	}

	spans := f.machine.MultiPatternSearch(subject, false)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			orig[i] = f.mask
		}
	}
	msg.Content = string(orig)
	return msg
}

// normalize lowercases, folds leet speak and strips noise characters.
// When origIdx is non-nil it records, per kept rune, the index of the
// original rune so matched spans can be mapped back for masking.
func normalize(input []rune, origIdx *[]int) []rune {
	out := make([]rune, 0, len(input))
	for i, r := range input {
		r = foldLeet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
		if origIdx != nil {
			*origIdx = append(*origIdx, i)
		}
	}
	return out
}

// foldLeet maps common leet speak characters back to their alphabet
// counterparts.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

package curate

import (
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// Degap removes '-' and '.' characters and drops sequences left shorter than
// minLength.
func Degap(seqs []domain.Sequence, minLength int) []domain.Sequence {
	out := make([]domain.Sequence, 0, len(seqs))
	for _, s := range seqs {
		d := strings.Map(func(r rune) rune {
			if r == '-' || r == '.' {
				return -1
			}
			return r
		}, s.Seq)
		if len(d) < minLength {
			continue
		}
		out = append(out, domain.Sequence{ID: s.ID, Seq: d})
	}
	return out
}

// ReverseTranscribe converts RNA sequences to DNA.
func ReverseTranscribe(seqs []domain.Sequence) []domain.Sequence {
	out := make([]domain.Sequence, len(seqs))
	for i, s := range seqs {
		out[i] = domain.Sequence{ID: s.ID, Seq: domain.ReverseTranscribe(s.Seq)}
	}
	return out
}

// KeepIDs returns the sequences whose id is in keep, preserving order.
func KeepIDs(seqs []domain.Sequence, keep map[string]bool) []domain.Sequence {
	out := make([]domain.Sequence, 0, len(keep))
	for _, s := range seqs {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

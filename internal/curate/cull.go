package curate

import (
	"fmt"

	"github.com/bft-labs/rescript/internal/domain"
)

// CullParams controls Cull.
type CullParams struct {
	// NumDegenerates discards sequences with this many or more degenerate bases.
	NumDegenerates int

	// HomopolymerLength discards sequences with an A, C, G or T run of this
	// length or longer.
	HomopolymerLength int
}

// DefaultCullParams returns the usual thresholds.
func DefaultCullParams() CullParams {
	return CullParams{NumDegenerates: 5, HomopolymerLength: 8}
}

// Validate checks parameter ranges.
func (p CullParams) Validate() error {
	if p.NumDegenerates < 1 {
		return fmt.Errorf("%w: num-degenerates must be >= 1", domain.ErrInvalidParameter)
	}
	if p.HomopolymerLength < 2 {
		return fmt.Errorf("%w: homopolymer-length must be >= 2", domain.ErrInvalidParameter)
	}
	return nil
}

// Cull removes sequences with too many degenerate bases or long homopolymers.
// Sequences containing non-IUPAC characters are an error.
func Cull(seqs []domain.Sequence, p CullParams) ([]domain.Sequence, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	kept := make([]domain.Sequence, 0, len(seqs))
	for _, s := range seqs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if countDegenerates(s.Seq) >= p.NumDegenerates {
			continue
		}
		if longestHomopolymer(s.Seq) >= p.HomopolymerLength {
			continue
		}
		kept = append(kept, s)
	}
	return kept, nil
}

func countDegenerates(seq string) int {
	n := 0
	for i := 0; i < len(seq); i++ {
		if domain.IsDegenerate(seq[i]) {
			n++
		}
	}
	return n
}

// longestHomopolymer returns the longest run of a single A, C, G or T.
func longestHomopolymer(seq string) int {
	best, run := 0, 0
	var prev byte
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		switch c {
		case 'A', 'C', 'G', 'T':
		default:
			run, prev = 0, 0
			continue
		}
		if c == prev {
			run++
		} else {
			run, prev = 1, c
		}
		if run > best {
			best = run
		}
	}
	return best
}

package curate

import (
	"context"
	"fmt"
	"math"

	"github.com/bft-labs/rescript/internal/domain"
)

// SegmentParams controls ExtractSegments.
type SegmentParams struct {
	// PercIdentity is the minimum fraction of reference positions that must
	// match the input sequence.
	PercIdentity float64

	// MinSeqLen is the minimum length of an extracted segment.
	MinSeqLen int

	Jobs int
}

// DefaultSegmentParams returns the default extraction settings.
func DefaultSegmentParams() SegmentParams {
	return SegmentParams{PercIdentity: 0.7, MinSeqLen: 32, Jobs: 1}
}

// Validate checks parameter ranges.
func (p SegmentParams) Validate() error {
	if p.PercIdentity <= 0 || p.PercIdentity > 1 {
		return fmt.Errorf("%w: perc-identity must be in (0, 1], got %g", domain.ErrInvalidParameter, p.PercIdentity)
	}
	if p.MinSeqLen < 1 {
		return fmt.Errorf("%w: min-seq-len must be >= 1", domain.ErrInvalidParameter)
	}
	return nil
}

// placement is an ungapped alignment of a reference against a sequence.
type placement struct {
	offset   int // may be negative when the reference overhangs the start
	identity float64
	ref      int
	minus    bool
}

// ExtractSegments cuts from each sequence the region matching one of the
// reference segments. Segments are returned in the orientation of the
// matching reference and keep the id of the sequence they were cut from.
// Sequences without a placement reaching PercIdentity, or whose segment is
// shorter than MinSeqLen, are returned in unmatched.
func ExtractSegments(ctx context.Context, seqs, refs []domain.Sequence, p SegmentParams) (segments, unmatched []domain.Sequence, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("%w: reference segments are empty", domain.ErrNoRecords)
	}

	strands := make([][2]string, len(refs))
	for i, r := range refs {
		strands[i] = [2]string{r.Seq, domain.ReverseComplement(r.Seq)}
	}

	found := make([]*domain.Sequence, len(seqs))
	err = forEach(ctx, p.Jobs, len(seqs), func(i int) error {
		s := seqs[i]
		best, ok := bestPlacement(s.Seq, strands, p)
		if !ok {
			return nil
		}
		m := len(refs[best.ref].Seq)
		start, end := best.offset, best.offset+m
		if start < 0 {
			start = 0
		}
		if end > len(s.Seq) {
			end = len(s.Seq)
		}
		seg := s.Seq[start:end]
		if best.minus {
			seg = domain.ReverseComplement(seg)
		}
		if len(seg) < p.MinSeqLen {
			return nil
		}
		found[i] = &domain.Sequence{ID: s.ID, Seq: seg}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i, f := range found {
		if f != nil {
			segments = append(segments, *f)
		} else {
			unmatched = append(unmatched, seqs[i])
		}
	}
	return segments, unmatched, nil
}

// bestPlacement slides every reference strand along seq and returns the
// placement with the highest identity at or above the threshold. Earlier
// references, the plus strand and smaller offsets win ties.
func bestPlacement(seq string, strands [][2]string, p SegmentParams) (placement, bool) {
	var best placement
	found := false
	for ri, pair := range strands {
		for si, ref := range pair {
			m := len(ref)
			if m == 0 {
				continue
			}
			need := int(math.Ceil(p.PercIdentity * float64(m)))
			minOverlap := m
			if p.MinSeqLen < minOverlap {
				minOverlap = p.MinSeqLen
			}
			for off := minOverlap - m; off <= len(seq)-minOverlap; off++ {
				hits := countMatches(seq, ref, off, need)
				if hits < need {
					continue
				}
				id := float64(hits) / float64(m)
				if !found || id > best.identity {
					best = placement{offset: off, identity: id, ref: ri, minus: si == 1}
					found = true
				}
			}
		}
	}
	return best, found
}

// countMatches counts IUPAC-compatible positions of ref placed at offset in
// seq. Positions overhanging seq count as mismatches. Counting stops early
// once need can no longer be reached.
func countMatches(seq, ref string, offset, need int) int {
	m := len(ref)
	hits := 0
	for j := 0; j < m; j++ {
		if hits+(m-j) < need {
			return hits
		}
		i := offset + j
		if i < 0 || i >= len(seq) {
			continue
		}
		if domain.Matches(seq[i], ref[j]) {
			hits++
		}
	}
	return hits
}

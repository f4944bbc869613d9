package curate

import (
	"context"
	"fmt"

	"github.com/bft-labs/rescript/internal/domain"
)

// OrientParams controls Orient.
type OrientParams struct {
	// K is the k-mer length.
	K int

	// Threshold is the minimum fraction of a sequence's k-mers found in the
	// reference for it to be considered oriented.
	Threshold float64

	Jobs int
}

// DefaultOrientParams returns the default k-mer settings.
func DefaultOrientParams() OrientParams {
	return OrientParams{K: 8, Threshold: 0.5, Jobs: 1}
}

// Orient puts every sequence in the same orientation as refs. A sequence
// whose reverse complement shares more k-mers with refs is flipped. Sequences
// below the threshold on both strands are returned in unmatched.
func Orient(ctx context.Context, seqs, refs []domain.Sequence, p OrientParams) (oriented, unmatched []domain.Sequence, err error) {
	if p.K < 1 || p.K > 32 {
		return nil, nil, fmt.Errorf("%w: k must be in [1, 32], got %d", domain.ErrInvalidParameter, p.K)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return nil, nil, fmt.Errorf("%w: threshold must be in [0, 1], got %g", domain.ErrInvalidParameter, p.Threshold)
	}
	if len(refs) == 0 {
		return nil, nil, fmt.Errorf("%w: reference sequences are empty", domain.ErrNoRecords)
	}

	index := make(map[string]struct{})
	for _, r := range refs {
		eachKmer(r.Seq, p.K, func(k string) { index[k] = struct{}{} })
	}

	type result struct {
		seq domain.Sequence
		ok  bool
	}
	results := make([]result, len(seqs))
	err = forEach(ctx, p.Jobs, len(seqs), func(i int) error {
		s := seqs[i]
		rc := domain.ReverseComplement(s.Seq)
		fwd := containment(s.Seq, p.K, index)
		rev := containment(rc, p.K, index)
		switch {
		case fwd < p.Threshold && rev < p.Threshold:
			results[i] = result{seq: s}
		case rev > fwd:
			results[i] = result{seq: domain.Sequence{ID: s.ID, Seq: rc}, ok: true}
		default:
			results[i] = result{seq: s, ok: true}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for _, r := range results {
		if r.ok {
			oriented = append(oriented, r.seq)
		} else {
			unmatched = append(unmatched, r.seq)
		}
	}
	return oriented, unmatched, nil
}

// eachKmer calls fn for every k-mer of seq made only of A, C, G and T.
func eachKmer(seq string, k int, fn func(string)) {
	run := 0
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'A', 'C', 'G', 'T':
			run++
		default:
			run = 0
		}
		if run >= k {
			fn(seq[i-k+1 : i+1])
		}
	}
}

// containment is the fraction of seq's k-mers present in index.
func containment(seq string, k int, index map[string]struct{}) float64 {
	total, hit := 0, 0
	eachKmer(seq, k, func(km string) {
		total++
		if _, ok := index[km]; ok {
			hit++
		}
	})
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}

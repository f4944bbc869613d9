package curate

import (
	"fmt"
	"math/rand"

	"github.com/bft-labs/rescript/internal/domain"
)

// Subsample keeps each sequence with probability fraction. The same seed
// always selects the same sequences.
func Subsample(seqs []domain.Sequence, fraction float64, seed int64) ([]domain.Sequence, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: subsample-size must be in (0, 1], got %g", domain.ErrInvalidParameter, fraction)
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.Sequence, 0, int(float64(len(seqs))*fraction)+1)
	for _, s := range seqs {
		if rng.Float64() < fraction {
			out = append(out, s)
		}
	}
	return out, nil
}

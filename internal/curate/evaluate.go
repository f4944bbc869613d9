package curate

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/bft-labs/rescript/internal/domain"
)

// RankStats summarises one taxonomic depth.
type RankStats struct {
	Depth        int
	UniqueLabels int
	Entropy      float64
	Proportion   float64
}

// EvaluateTaxonomy computes per-depth label statistics. A feature is labeled
// at depth d when its d-th rank carries a name; the label at that depth is
// the lineage up to and including that rank.
func EvaluateTaxonomy(tax *domain.Taxonomy) ([]RankStats, error) {
	if tax.Len() == 0 {
		return nil, fmt.Errorf("%w: taxonomy is empty", domain.ErrNoRecords)
	}
	var lineages [][]string
	maxDepth := 0
	for _, id := range tax.IDs() {
		l, _ := tax.Get(id)
		r := domain.SplitRanks(l)
		lineages = append(lineages, r)
		if len(r) > maxDepth {
			maxDepth = len(r)
		}
	}

	stats := make([]RankStats, 0, maxDepth)
	for d := 1; d <= maxDepth; d++ {
		counts := make(map[string]int)
		labeled := 0
		for _, r := range lineages {
			if len(r) < d || isEmptyRank(r[d-1]) {
				continue
			}
			labeled++
			counts[domain.JoinRanks(r[:d])]++
		}
		stats = append(stats, RankStats{
			Depth:        d,
			UniqueLabels: len(counts),
			Entropy:      shannon(counts, labeled),
			Proportion:   float64(labeled) / float64(len(lineages)),
		})
	}
	return stats, nil
}

// RankStatsTable renders stats as table rows.
func RankStatsTable(stats []RankStats) (header []string, rows [][]string) {
	header = []string{"level", "unique_labels", "entropy", "proportion_labeled"}
	for _, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(s.Depth),
			strconv.Itoa(s.UniqueLabels),
			formatFloat(s.Entropy),
			formatFloat(s.Proportion),
		})
	}
	return header, rows
}

// SeqPercentiles are the length percentiles reported by EvaluateSeqs.
var SeqPercentiles = []int{2, 9, 25, 50, 75, 91, 98}

// SeqStats summarises a set of sequences.
type SeqStats struct {
	Count       int
	MinLen      int
	MaxLen      int
	MeanLen     float64
	Percentiles map[int]float64
	KmerEntropy float64
	K           int
}

// EvaluateSeqs computes length statistics and the Shannon entropy of the
// k-mer distribution across all sequences.
func EvaluateSeqs(seqs []domain.Sequence, k int) (SeqStats, error) {
	if len(seqs) == 0 {
		return SeqStats{}, fmt.Errorf("%w: no sequences", domain.ErrNoRecords)
	}
	if k < 1 {
		return SeqStats{}, fmt.Errorf("%w: kmer length must be >= 1", domain.ErrInvalidParameter)
	}
	lens := make([]int, len(seqs))
	sum := 0
	kmers := make(map[string]int)
	total := 0
	for i, s := range seqs {
		lens[i] = s.Len()
		sum += lens[i]
		eachKmer(s.Seq, k, func(km string) {
			kmers[km]++
			total++
		})
	}
	sort.Ints(lens)

	st := SeqStats{
		Count:       len(seqs),
		MinLen:      lens[0],
		MaxLen:      lens[len(lens)-1],
		MeanLen:     float64(sum) / float64(len(lens)),
		Percentiles: make(map[int]float64, len(SeqPercentiles)),
		KmerEntropy: shannon(kmers, total),
		K:           k,
	}
	for _, q := range SeqPercentiles {
		st.Percentiles[q] = percentile(lens, float64(q))
	}
	return st, nil
}

// Table renders st as a two-column statistic/value table.
func (st SeqStats) Table() (header []string, rows [][]string) {
	header = []string{"statistic", "value"}
	rows = [][]string{
		{"count", strconv.Itoa(st.Count)},
		{"min_length", strconv.Itoa(st.MinLen)},
		{"max_length", strconv.Itoa(st.MaxLen)},
		{"mean_length", formatFloat(st.MeanLen)},
	}
	for _, q := range SeqPercentiles {
		rows = append(rows, []string{fmt.Sprintf("length_p%d", q), formatFloat(st.Percentiles[q])})
	}
	rows = append(rows, []string{fmt.Sprintf("kmer_entropy_k%d", st.K), formatFloat(st.KmerEntropy)})
	return header, rows
}

// shannon returns the natural-log entropy of counts summing to total.
func shannon(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return h
}

// percentile uses linear interpolation between closest ranks on sorted xs.
func percentile(xs []int, q float64) float64 {
	if len(xs) == 1 {
		return float64(xs[0])
	}
	pos := q / 100 * float64(len(xs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return float64(xs[lo]) + frac*float64(xs[hi]-xs[lo])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

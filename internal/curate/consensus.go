package curate

import (
	"strings"

	"github.com/bft-labs/rescript/internal/domain"
)

// isEmptyRank reports whether r carries no name, i.e. it is blank or just a
// rank handle such as "g__".
func isEmptyRank(r string) bool {
	if r == "" {
		return true
	}
	if i := strings.Index(r, "__"); i >= 0 && i+2 == len(r) {
		return true
	}
	return false
}

// trimEmpty drops trailing unnamed ranks.
func trimEmpty(ranks []string) []string {
	n := len(ranks)
	for n > 0 && isEmptyRank(ranks[n-1]) {
		n--
	}
	return ranks[:n]
}

// lcaRanks returns the longest rank prefix shared by every lineage.
func lcaRanks(lineages [][]string) []string {
	if len(lineages) == 0 {
		return nil
	}
	first := trimEmpty(lineages[0])
	n := len(first)
	for _, l := range lineages[1:] {
		l = trimEmpty(l)
		if len(l) < n {
			n = len(l)
		}
		for i := 0; i < n; i++ {
			if l[i] != first[i] {
				n = i
				break
			}
		}
	}
	out := make([]string, n)
	copy(out, first[:n])
	return out
}

// superRanks returns the longest lineage when every other lineage is a
// prefix of it, and the LCA otherwise.
func superRanks(lineages [][]string) []string {
	if len(lineages) == 0 {
		return nil
	}
	longest := trimEmpty(lineages[0])
	for _, l := range lineages[1:] {
		if l = trimEmpty(l); len(l) > len(longest) {
			longest = l
		}
	}
	for _, l := range lineages {
		if !isRankPrefix(trimEmpty(l), longest) {
			return lcaRanks(lineages)
		}
	}
	out := make([]string, len(longest))
	copy(out, longest)
	return out
}

func isRankPrefix(prefix, ranks []string) bool {
	if len(prefix) > len(ranks) {
		return false
	}
	for i := range prefix {
		if prefix[i] != ranks[i] {
			return false
		}
	}
	return true
}

// majorityLabel returns the most frequent label. Ties go to the label seen
// first.
func majorityLabel(labels []string) string {
	counts := make(map[string]int, len(labels))
	best, bestN := "", 0
	for _, l := range labels {
		counts[l]++
	}
	for _, l := range labels {
		if n := counts[l]; n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

// longestLabel returns the label with the most ranks. Ties go to the label
// seen first.
func longestLabel(labels []string) string {
	best, bestN := "", -1
	for _, l := range labels {
		if n := len(trimEmpty(domain.SplitRanks(l))); n > bestN {
			best, bestN = l, n
		}
	}
	return best
}

func splitAll(labels []string) [][]string {
	out := make([][]string, len(labels))
	for i, l := range labels {
		out[i] = domain.SplitRanks(l)
	}
	return out
}

package domain

import (
	"fmt"
	"strings"
)

// Sequence is a single reference sequence.
type Sequence struct {
	// ID is the FASTA header token up to the first whitespace.
	ID string

	// Seq holds the residues, upper-cased on read.
	Seq string
}

// Len returns the number of residues.
func (s Sequence) Len() int { return len(s.Seq) }

// iupacBits encodes each nucleotide code as a bitmask over A, C, G, T.
// U is treated as T.
var iupacBits = [256]uint8{
	'A': 1, 'C': 2, 'G': 4, 'T': 8, 'U': 8,
	'R': 1 | 4, 'Y': 2 | 8, 'S': 2 | 4, 'W': 1 | 8,
	'K': 4 | 8, 'M': 1 | 2,
	'B': 2 | 4 | 8, 'D': 1 | 4 | 8, 'H': 1 | 2 | 8, 'V': 1 | 2 | 4,
	'N': 1 | 2 | 4 | 8,
}

var complement = [256]byte{
	'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'U': 'A',
	'R': 'Y', 'Y': 'R', 'S': 'S', 'W': 'W', 'K': 'M', 'M': 'K',
	'B': 'V', 'V': 'B', 'D': 'H', 'H': 'D', 'N': 'N',
	'-': '-', '.': '.',
}

// IsNucleotide reports whether b is an upper-case IUPAC nucleotide code.
func IsNucleotide(b byte) bool { return iupacBits[b] != 0 }

// IsDegenerate reports whether b is an IUPAC code other than A, C, G, T or U.
func IsDegenerate(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'U':
		return false
	}
	return iupacBits[b] != 0
}

// IsGap reports whether b is an alignment gap character.
func IsGap(b byte) bool { return b == '-' || b == '.' }

// Matches reports whether two IUPAC codes share at least one base.
func Matches(a, b byte) bool { return iupacBits[a]&iupacBits[b] != 0 }

// Validate checks that every residue is an IUPAC code or a gap.
func (s Sequence) Validate() error {
	for i := 0; i < len(s.Seq); i++ {
		c := s.Seq[i]
		if !IsNucleotide(c) && !IsGap(c) {
			return fmt.Errorf("%w: %s has %q at position %d", ErrInvalidSequence, s.ID, c, i+1)
		}
	}
	return nil
}

// ReverseComplement returns the reverse complement of seq.
// Unknown characters are kept as-is.
func ReverseComplement(seq string) string {
	n := len(seq)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		c := seq[n-1-i]
		if r := complement[c]; r != 0 {
			out[i] = r
		} else {
			out[i] = c
		}
	}
	return string(out)
}

// ReverseTranscribe converts an RNA sequence to DNA.
func ReverseTranscribe(seq string) string {
	return strings.ReplaceAll(seq, "U", "T")
}

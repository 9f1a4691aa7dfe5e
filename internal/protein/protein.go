// Package protein holds the domain rules for protein sequences and UniProt
// identifiers: input validation, sequence cleanup, and the function predictor.
package protein

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// validSequenceRE matches the twenty standard amino acid codes plus '-' for
// alignment gaps, case-insensitive.
var validSequenceRE = regexp.MustCompile(`(?i)^[ACDEFGHIKLMNPQRSTVWY-]+$`)

// accessionRE matches UniProt accession numbers (P00533, A0A024R1R8),
// including isoform suffixes like P00533-2.
var accessionRE = regexp.MustCompile(`(?i)^[A-Z0-9]{6,10}(?:-\d+)?$`)

// entryNameRE matches UniProt entry names of the form NAME_SPECIES
// (EGFR_HUMAN, INS_MOUSE).
var entryNameRE = regexp.MustCompile(`(?i)^[A-Z0-9]+_[A-Z0-9]+$`)

// IsIdentifier reports whether text looks like a UniProt accession or entry
// name rather than a raw sequence.
func IsIdentifier(text string) bool {
	return accessionRE.MatchString(text) || entryNameRE.MatchString(text)
}

// ValidateSequence checks that seq contains only standard amino acid codes
// (and '-'). The returned error names the offending characters so the user
// can spot pasted junk.
func ValidateSequence(seq string) error {
	if seq == "" {
		return fmt.Errorf("sequence is empty")
	}
	if validSequenceRE.MatchString(seq) {
		return nil
	}

	seen := map[rune]bool{}
	var bad []string
	for _, r := range seq {
		u := strings.ToUpper(string(r))
		if !validSequenceRE.MatchString(u) && !seen[r] {
			seen[r] = true
			bad = append(bad, fmt.Sprintf("%q", string(r)))
		}
	}
	sort.Strings(bad)
	return fmt.Errorf("sequence contains invalid characters: %s", strings.Join(bad, ", "))
}

// Clean normalises pasted sequence input: FASTA header lines are dropped,
// whitespace and digits (line numbers from copy/paste) are removed, and the
// result is uppercased. Clean does not validate; call ValidateSequence after.
func Clean(raw string) string {
	var sb strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		for _, r := range trimmed {
			if r >= '0' && r <= '9' {
				continue
			}
			if r == ' ' || r == '\t' || r == '\r' {
				continue
			}
			sb.WriteRune(r)
		}
	}
	return strings.ToUpper(sb.String())
}

// Package ids parses and renders the two identifier families used across
// NCBI E-utilities and PubMed Central: PMIDs and PMCIDs.
package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// PubMedId is a positive PubMed identifier.
type PubMedId uint32

// ParsePubMedId parses a whitespace-trimmed decimal string into a PubMedId.
// Zero, negative, and non-digit input are rejected.
func ParsePubMedId(s string) (PubMedId, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty pmid")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid pmid %q: non-digit character", s)
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pmid %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid pmid %q: must be positive", s)
	}
	return PubMedId(n), nil
}

// String renders the PMID as bare digits.
func (p PubMedId) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// PmcId is a positive PubMed Central identifier, stored without its "PMC"
// prefix.
type PmcId uint32

// ParsePmcId parses an optional case-insensitive "PMC" prefix followed by
// decimal digits. Leading/trailing whitespace is tolerated.
func ParsePmcId(s string) (PmcId, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty pmcid")
	}
	trimmed := s
	if len(s) >= 3 && strings.EqualFold(s[:3], "PMC") {
		trimmed = s[3:]
	}
	if trimmed == "" {
		return 0, fmt.Errorf("invalid pmcid %q: no digits after PMC prefix", s)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid pmcid %q: non-digit character", s)
		}
	}
	n, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pmcid %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid pmcid %q: must be positive", s)
	}
	return PmcId(n), nil
}

// String renders the canonical "PMC<digits>" form.
func (p PmcId) String() string {
	return "PMC" + strconv.FormatUint(uint64(p), 10)
}

package ranking

import (
	"cmp"
	"slices"
)

// Candidate pairs a candidate identifier with its features and score.
type Candidate struct {
	ID    string
	Info  Info
	Score float64

	// Index is the caller's position for the candidate. Rank does not touch it.
	Index int
}

// Rank scores every candidate and orders them best first. Candidates with
// equal scores keep their input order. The input slice is reordered in place
// and returned.
func (s *Scorer) Rank(candidates []Candidate) []Candidate {
	for i := range candidates {
		candidates[i].Score = s.Evaluate(&candidates[i].Info)
	}
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return candidates
}

package ranking

import (
	"math"
)

// MaxDistMeters is the pivot distance beyond which all candidates are
// equally far away.
const MaxDistMeters = 2.0e6

// StoredInfo is the cacheable subset of a candidate's ranking features.
type StoredInfo struct {
	// Distance from the candidate to the search pivot, in meters.
	DistanceToPivot float64

	Type    ResultType
	Classif ClassifType
}

// PoiType returns the POI class. It panics unless Type is a POI type.
func (s StoredInfo) PoiType() PoiType {
	if !s.Type.IsPoi() {
		panic("ranking: PoiType requested for " + s.Type.String())
	}
	return s.Classif.Poi()
}

// StreetType returns the street class. It panics unless Type is TypeStreet.
func (s StoredInfo) StreetType() StreetType {
	if s.Type != TypeStreet {
		panic("ranking: StreetType requested for " + s.Type.String())
	}
	return s.Classif.Street()
}

// Info holds every signal collected for one (query, candidate) pair. It is
// filled once by the search pipeline and only read afterwards.
type Info struct {
	StoredInfo

	// Administrative rank and popularity, both 0-255.
	Rank       uint8
	Popularity uint8

	NameScore  NameScore
	ErrorsMade ErrorsMade

	// The name that matched is an alternative or historic one.
	IsAltOrOldName bool

	// Number of query tokens matched against the name. Must be positive
	// whenever ErrorsMade is valid.
	NumTokens int

	// Share of query tokens common to ambiguous interpretations, 0..1.
	CommonTokensFactor float64

	// Fraction of the name matched by the query, 0..1.
	MatchedFraction float64

	// Matched by category tokens only, not by name.
	PureCats bool
	// Query holds category-looking tokens that do not describe the candidate.
	FalseCats bool

	AllTokensUsed bool

	// The query is a category browse such as "restaurants nearby".
	CategorialRequest bool

	HasName bool

	TokenRanges TokenRanges
}

// EffectiveResultType is the result type used for scoring. Buildings matched
// only by category don't get the building bonus.
func (i Info) EffectiveResultType() ResultType {
	if i.PureCats && i.Type == TypeBuilding {
		return TypeUnclassified
	}
	return i.Type
}

// EffectivePoiType is the POI type used for scoring. Category-only matches
// are all General, otherwise subway stations would always win such searches.
func (i Info) EffectivePoiType() PoiType {
	if i.PureCats {
		return PoiGeneral
	}
	return i.Classif.Poi()
}

// EffectiveNameScore is the name score used for scoring. For sub-POIs a full
// prefix counts as a full match, so "REWE", "REWE City" and "REWE to Go" rank
// equally for "rewe". Streets and cities keep the distinction.
func (i Info) EffectiveNameScore() NameScore {
	if !i.PureCats && i.Type == TypePoi && i.NameScore == NameScoreFullPrefix {
		return NameScoreFullMatch
	}
	return i.NameScore
}

// ErrorsPerToken returns the number of typos per matched query token, or the
// worst possible per-token value when no bounded-error match was made.
func (i Info) ErrorsPerToken() float64 {
	if !i.ErrorsMade.IsValid() {
		return float64(MaxErrorsForTokenLength(math.MaxInt))
	}
	if i.NumTokens <= 0 {
		panic("ranking: ErrorsMade is valid but NumTokens is not positive")
	}
	return float64(i.ErrorsMade.Count) / float64(i.NumTokens)
}

// NormalizedDistance maps the pivot distance into [0, 1].
func NormalizedDistance(distance float64) float64 {
	return math.Max(0, math.Min(distance, MaxDistMeters)) / MaxDistMeters
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package ranking

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when a weight set breaks a model invariant.
var ErrInvalidWeights = errors.New("invalid ranking weights")

// CategorialWeights are the coefficients used for category browse queries.
type CategorialWeights struct {
	DistanceToPivot float64 `json:"distance_to_pivot"`
	Rank            float64 `json:"rank"`
	Popularity      float64 `json:"popularity"`
	FalseCats       float64 `json:"false_cats"`
	HasName         float64 `json:"has_name"`
}

// TextWeights are the scalar coefficients used for free-text queries.
type TextWeights struct {
	DistanceToPivot float64 `json:"distance_to_pivot"`
	Rank            float64 `json:"rank"`
	Popularity      float64 `json:"popularity"`
	FalseCats       float64 `json:"false_cats"`
	ErrorsMade      float64 `json:"errors_made"`
	MatchedFraction float64 `json:"matched_fraction"`
	AllTokensUsed   float64 `json:"all_tokens_used"`
	CommonTokens    float64 `json:"common_tokens"`
}

// Weights is a complete coefficient set of the linear model. The lookup
// tables are arrays sized by their enum, so every variant has an entry.
type Weights struct {
	Categorial CategorialWeights
	Text       TextWeights

	NameScore  [nameScoreCount]float64
	Type       [resultTypeCount]float64
	PoiType    [poiTypeCount]float64
	StreetType [streetTypeCount]float64
}

// DefaultWeights returns the coefficients of the offline-trained model.
// They must stay in sync with the training scripts; change them together.
func DefaultWeights() *Weights {
	return &Weights{
		Categorial: CategorialWeights{
			DistanceToPivot: -0.6874177,
			Rank:            1.0000000,
			Popularity:      0.05,
			FalseCats:       -1.0000000,
			HasName:         0.5,
		},
		Text: TextWeights{
			DistanceToPivot: -0.2123693,
			// Checked by the famous cities rank test.
			Rank:       0.23,
			Popularity: 1.0000000,
			// Kept small: for "eat" category types should beat an "eat" name, but
			// for "subway" a famous fast food chain competes with the metro.
			FalseCats:       -0.01,
			ErrorsMade:      -0.15,
			MatchedFraction: 0.1876736,
			AllTokensUsed:   0.0478513,
			CommonTokens:    -0.05,
		},
		NameScore: [nameScoreCount]float64{
			NameScoreZero:       -0.05,
			NameScoreSubstring:  0,
			NameScorePrefix:     0.01,
			NameScoreFirstMatch: 0.012,
			NameScoreFullPrefix: 0.018,
			NameScoreFullMatch:  0.02,
		},
		Type: [resultTypeCount]float64{
			TypePoi:        0,
			TypeComplexPoi: 0,
			// Must exceed the best street type, see the Arbat address test.
			TypeBuilding:     0.007,
			TypeStreet:       0,
			TypeSuburb:       0,
			TypeUnclassified: -0.02,
			TypeVillage:      0,
			TypeCity:         0.01,
			TypeState:        0.0233254,
			TypeCountry:      0.1679389,
		},
		PoiType: [poiTypeCount]float64{
			PoiTransportMajor: 0.03,
			// Above zero but below a residential street.
			PoiTransportLocal: 0.003,
			PoiEat:            0.01,
			PoiHotel:          0.01,
			PoiShopOrAmenity:  0.01,
			PoiAttraction:     0.01,
			PoiService:        -0.01,
			PoiGeneral:        0,
		},
		StreetType: [streetTypeCount]float64{
			StreetDefault:     0,
			StreetPedestrian:  0,
			StreetCycleway:    0,
			StreetOutdoor:     0,
			StreetMinors:      0.004,
			StreetResidential: 0.004,
			StreetRegular:     0.005,
			StreetMotorway:    0.006,
		},
	}
}

// Validate checks the cross-coefficient invariants of the model.
func (w *Weights) Validate() error {
	if w.Type[TypeBuilding] <= w.StreetType[StreetMotorway] {
		return fmt.Errorf("%w: building type weight %v must exceed motorway street weight %v",
			ErrInvalidWeights, w.Type[TypeBuilding], w.StreetType[StreetMotorway])
	}

	checks := []struct {
		name     string
		value    float64
		positive bool
	}{
		{"categorial.has_name", w.Categorial.HasName, true},
		{"categorial.popularity", w.Categorial.Popularity, true},
		{"text.distance_to_pivot", w.Text.DistanceToPivot, false},
		{"text.rank", w.Text.Rank, true},
		{"text.popularity", w.Text.Popularity, true},
		{"text.errors_made", w.Text.ErrorsMade, false},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) {
			return fmt.Errorf("%w: %s is NaN", ErrInvalidWeights, c.name)
		}
		if c.positive && c.value < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidWeights, c.name, c.value)
		}
		if !c.positive && c.value > 0 {
			return fmt.Errorf("%w: %s must be <= 0, got %v", ErrInvalidWeights, c.name, c.value)
		}
	}
	return nil
}

// Scorer evaluates the linear model with a fixed, validated weight set.
// It is immutable and safe for concurrent use.
type Scorer struct {
	w Weights
}

// NewScorer validates w and returns a scorer using a copy of it.
// A nil w selects DefaultWeights.
func NewScorer(w *Weights) (*Scorer, error) {
	if w == nil {
		w = DefaultWeights()
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{w: *w}, nil
}

// Weights returns a copy of the scorer's coefficients.
func (s *Scorer) Weights() *Weights {
	w := s.w
	return &w
}

var defaultScorer = mustScorer(DefaultWeights())

func mustScorer(w *Weights) *Scorer {
	s, err := NewScorer(w)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultScorer returns the scorer for DefaultWeights.
func DefaultScorer() *Scorer {
	return defaultScorer
}

// Evaluate scores info with the default weights.
func Evaluate(info *Info) float64 {
	return defaultScorer.Evaluate(info)
}

// Evaluate returns the linear model rank of info; higher is better.
//
// Categorial requests only look at distance, rank, popularity, false
// categories and whether the candidate has a name. Free-text requests also
// weigh the result type, its POI or street class, and the name match.
//
// Products are converted explicitly so the compiler cannot fuse them into
// multiply-adds; the sum must be identical on every architecture.
func (s *Scorer) Evaluate(info *Info) float64 {
	w := &s.w
	distance := NormalizedDistance(info.DistanceToPivot)
	rank := float64(info.Rank) / math.MaxUint8
	popularity := float64(info.Popularity) / math.MaxUint8

	result := 0.0
	if info.CategorialRequest {
		result += float64(w.Categorial.DistanceToPivot * distance)
		result += float64(w.Categorial.Rank * rank)
		result += float64(w.Categorial.Popularity * popularity)
		result += float64(w.Categorial.FalseCats * boolToFloat(info.FalseCats))
		result += float64(boolToFloat(info.HasName) * w.Categorial.HasName)
		return result
	}

	result += float64(w.Text.DistanceToPivot * distance)
	result += float64(w.Text.Rank * rank)
	result += float64(w.Text.Popularity * popularity)
	result += float64(w.Text.FalseCats * boolToFloat(info.FalseCats))

	result += w.Type[mustResultType(info.EffectiveResultType())]
	if info.Type.IsPoi() {
		result += w.PoiType[mustPoiType(info.EffectivePoiType())]
	} else if info.Type == TypeStreet {
		result += w.StreetType[mustStreetType(info.Classif.Street())]
	}

	result += float64(boolToFloat(info.AllTokensUsed) * w.Text.AllTokensUsed)

	nameRank := w.NameScore[mustNameScore(info.EffectiveNameScore())] +
		float64(w.Text.ErrorsMade*info.ErrorsPerToken()) +
		float64(w.Text.MatchedFraction*info.MatchedFraction)
	nameFactor := 1.0
	if info.IsAltOrOldName {
		nameFactor = 0.7
	}
	result += float64(nameFactor * nameRank)

	result += float64(w.Text.CommonTokens * info.CommonTokensFactor)
	return result
}

func mustResultType(t ResultType) ResultType {
	if !t.Valid() {
		panic("ranking: result type out of range: " + t.String())
	}
	return t
}

func mustPoiType(p PoiType) PoiType {
	if !p.Valid() {
		panic("ranking: poi type out of range: " + p.String())
	}
	return p
}

func mustStreetType(s StreetType) StreetType {
	if !s.Valid() {
		panic("ranking: street type out of range: " + s.String())
	}
	return s
}

func mustNameScore(n NameScore) NameScore {
	if !n.Valid() {
		panic("ranking: name score out of range: " + n.String())
	}
	return n
}

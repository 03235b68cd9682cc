package ranking

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidRecord is returned when a Record cannot be turned into an Info.
var ErrInvalidRecord = errors.New("invalid ranking record")

// MaxTokens bounds num_tokens. Search queries are cut far below this.
const MaxTokens = 1024

// Classifier derives the POI or street class of a candidate from its raw
// taxonomy tags.
type Classifier interface {
	ClassifyPaths(t ResultType, paths []string) (ClassifType, error)
}

// Record is the JSON form of an Info exchanged with the search pipeline and
// the training data exporter. Enums use their String names; a nil ErrorsMade
// means no bounded-error match was made.
type Record struct {
	ID string `json:"id,omitempty"`

	DistanceToPivot float64  `json:"distance_to_pivot"`
	ResultType      string   `json:"result_type"`
	PoiType         string   `json:"poi_type,omitempty"`
	StreetType      string   `json:"street_type,omitempty"`
	Types           []string `json:"types,omitempty"`

	Rank               uint8   `json:"rank"`
	Popularity         uint8   `json:"popularity"`
	NameScore          string  `json:"name_score"`
	ErrorsMade         *int    `json:"errors_made,omitempty"`
	IsAltOrOldName     bool    `json:"is_alt_or_old_name,omitempty"`
	NumTokens          int     `json:"num_tokens"`
	CommonTokensFactor float64 `json:"common_tokens_factor,omitempty"`
	MatchedFraction    float64 `json:"matched_fraction"`
	PureCats           bool    `json:"pure_cats,omitempty"`
	FalseCats          bool    `json:"false_cats,omitempty"`
	AllTokensUsed      bool    `json:"all_tokens_used,omitempty"`
	CategorialRequest  bool    `json:"categorial_request,omitempty"`
	HasName            bool    `json:"has_name,omitempty"`

	// Result type name -> [begin, end) of matched query tokens.
	TokenRanges map[string][2]int `json:"token_ranges,omitempty"`
}

// Info validates r and converts it. cls is consulted only when r lacks an
// explicit POI or street type but carries raw Types; it may be nil.
func (r *Record) Info(cls Classifier) (Info, error) {
	var info Info

	rt, err := ParseResultType(r.ResultType)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	info.Type = rt
	info.DistanceToPivot = r.DistanceToPivot

	if info.Classif, err = r.classif(rt, cls); err != nil {
		return Info{}, err
	}

	if info.NameScore, err = ParseNameScore(r.NameScore); err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	info.ErrorsMade = InvalidErrorsMade()
	if r.ErrorsMade != nil {
		if *r.ErrorsMade < 0 {
			return Info{}, fmt.Errorf("%w: negative errors_made %d", ErrInvalidRecord, *r.ErrorsMade)
		}
		if r.NumTokens <= 0 {
			return Info{}, fmt.Errorf("%w: errors_made requires positive num_tokens", ErrInvalidRecord)
		}
		info.ErrorsMade = NewErrorsMade(*r.ErrorsMade)
	}
	if r.NumTokens < 0 {
		return Info{}, fmt.Errorf("%w: negative num_tokens %d", ErrInvalidRecord, r.NumTokens)
	}
	if r.NumTokens > MaxTokens {
		return Info{}, fmt.Errorf("%w: num_tokens %d above %d", ErrInvalidRecord, r.NumTokens, MaxTokens)
	}

	if err := checkFraction("distance_to_pivot", r.DistanceToPivot, 0, math.Inf(1)); err != nil {
		return Info{}, err
	}
	if err := checkFraction("common_tokens_factor", r.CommonTokensFactor, 0, 1); err != nil {
		return Info{}, err
	}
	if err := checkFraction("matched_fraction", r.MatchedFraction, 0, 1); err != nil {
		return Info{}, err
	}

	info.Rank = r.Rank
	info.Popularity = r.Popularity
	info.IsAltOrOldName = r.IsAltOrOldName
	info.NumTokens = r.NumTokens
	info.CommonTokensFactor = r.CommonTokensFactor
	info.MatchedFraction = r.MatchedFraction
	info.PureCats = r.PureCats
	info.FalseCats = r.FalseCats
	info.AllTokensUsed = r.AllTokensUsed
	info.CategorialRequest = r.CategorialRequest
	info.HasName = r.HasName

	if info.TokenRanges, err = r.tokenRanges(); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (r *Record) classif(rt ResultType, cls Classifier) (ClassifType, error) {
	switch {
	case rt.IsPoi() && r.PoiType != "":
		p, err := ParsePoiType(r.PoiType)
		if err != nil {
			return ClassifType{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return PoiClassif(p), nil
	case rt == TypeStreet && r.StreetType != "":
		s, err := ParseStreetType(r.StreetType)
		if err != nil {
			return ClassifType{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return StreetClassif(s), nil
	case rt.IsPoi() || rt == TypeStreet:
		if cls == nil || len(r.Types) == 0 {
			return ClassifType{}, fmt.Errorf("%w: %s needs a poi_type/street_type or types", ErrInvalidRecord, rt)
		}
		c, err := cls.ClassifyPaths(rt, r.Types)
		if err != nil {
			return ClassifType{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		return c, nil
	}
	return ClassifType{}, nil
}

// tokenRanges converts and validates the parse: ranges must not overlap and,
// if any is given, must cover every query token.
func (r *Record) tokenRanges() (TokenRanges, error) {
	var tr TokenRanges
	if len(r.TokenRanges) == 0 {
		return tr, nil
	}

	type named struct {
		name       string
		begin, end int
	}
	ranges := make([]named, 0, len(r.TokenRanges))
	for name, bounds := range r.TokenRanges {
		rt, err := ParseResultType(name)
		if err != nil {
			return tr, fmt.Errorf("%w: token_ranges: %w", ErrInvalidRecord, err)
		}
		begin, end := bounds[0], bounds[1]
		if begin < 0 || end < begin || end > r.NumTokens {
			return tr, fmt.Errorf("%w: token range %s [%d, %d) outside [0, %d)", ErrInvalidRecord, name, begin, end, r.NumTokens)
		}
		tr[rt] = TokenRange{Begin: begin, End: end}
		if begin < end {
			ranges = append(ranges, named{name, begin, end})
		}
	}

	slices.SortFunc(ranges, func(a, b named) int { return cmp.Compare(a.begin, b.begin) })
	covered := 0
	for i, cur := range ranges {
		if i > 0 && cur.begin < ranges[i-1].end {
			return tr, fmt.Errorf("%w: token %d matched twice (%s and %s)", ErrInvalidRecord, cur.begin, ranges[i-1].name, cur.name)
		}
		covered += cur.end - cur.begin
	}
	if covered != 0 && covered != r.NumTokens {
		return tr, fmt.Errorf("%w: token ranges cover %d of %d tokens", ErrInvalidRecord, covered, r.NumTokens)
	}
	return tr, nil
}

func checkFraction(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidRecord, name, v, lo, hi)
	}
	return nil
}

// NewRecord is the inverse of Record.Info.
func NewRecord(id string, info Info) Record {
	r := Record{
		ID:                 id,
		DistanceToPivot:    info.DistanceToPivot,
		ResultType:         info.Type.String(),
		Rank:               info.Rank,
		Popularity:         info.Popularity,
		NameScore:          info.NameScore.String(),
		IsAltOrOldName:     info.IsAltOrOldName,
		NumTokens:          info.NumTokens,
		CommonTokensFactor: info.CommonTokensFactor,
		MatchedFraction:    info.MatchedFraction,
		PureCats:           info.PureCats,
		FalseCats:          info.FalseCats,
		AllTokensUsed:      info.AllTokensUsed,
		CategorialRequest:  info.CategorialRequest,
		HasName:            info.HasName,
	}
	if info.Type.IsPoi() {
		r.PoiType = info.Classif.Poi().String()
	} else if info.Type == TypeStreet {
		r.StreetType = info.Classif.Street().String()
	}
	if info.ErrorsMade.IsValid() {
		n := info.ErrorsMade.Count
		r.ErrorsMade = &n
	}
	for t, tr := range info.TokenRanges {
		if !tr.Empty() {
			if r.TokenRanges == nil {
				r.TokenRanges = make(map[string][2]int)
			}
			r.TokenRanges[ResultType(t).String()] = [2]int{tr.Begin, tr.End}
		}
	}
	return r
}

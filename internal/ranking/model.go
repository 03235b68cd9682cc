package ranking

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownName is returned when parsing an enum from an unrecognized name.
var ErrUnknownName = errors.New("unknown name")

// ResultType is the kind of geocoder object a candidate is. The order is the
// priority order used by the type table.
type ResultType uint8

const (
	TypePoi ResultType = iota // sub-POI
	TypeComplexPoi
	TypeBuilding
	TypeStreet
	TypeSuburb
	TypeUnclassified
	TypeVillage
	TypeCity
	TypeState
	TypeCountry

	resultTypeCount
)

// ResultTypeCount is the number of result types.
const ResultTypeCount = int(resultTypeCount)

var resultTypeNames = [resultTypeCount]string{
	"SUBPOI",
	"COMPLEX_POI",
	"Building",
	"Street",
	"Suburb",
	"Unclassified",
	"Village",
	"City",
	"State",
	"Country",
}

// IsPoi reports whether t is a sub-POI or a complex POI.
func (t ResultType) IsPoi() bool {
	return t == TypePoi || t == TypeComplexPoi
}

// Valid reports whether t is a declared result type.
func (t ResultType) Valid() bool {
	return t < resultTypeCount
}

func (t ResultType) String() string {
	if !t.Valid() {
		return "ResultType(" + strconv.Itoa(int(t)) + ")"
	}
	return resultTypeNames[t]
}

// ParseResultType parses the String form of a result type.
func ParseResultType(s string) (ResultType, error) {
	for i, name := range resultTypeNames {
		if name == s {
			return ResultType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: result type %q", ErrUnknownName, s)
}

// PoiType is the ranking-relevant category of a POI.
type PoiType uint8

const (
	PoiTransportMajor PoiType = iota
	PoiTransportLocal
	PoiEat
	PoiHotel
	PoiShopOrAmenity
	PoiAttraction
	PoiService
	PoiGeneral

	poiTypeCount
)

// PoiTypeCount is the number of POI types.
const PoiTypeCount = int(poiTypeCount)

var poiTypeNames = [poiTypeCount]string{
	"TransportMajor",
	"TransportLocal",
	"Eat",
	"Hotel",
	"ShopOrAmenity",
	"Attraction",
	"Service",
	"General",
}

// Valid reports whether p is a declared POI type.
func (p PoiType) Valid() bool {
	return p < poiTypeCount
}

func (p PoiType) String() string {
	if !p.Valid() {
		return "PoiType(" + strconv.Itoa(int(p)) + ")"
	}
	return poiTypeNames[p]
}

// ParsePoiType parses the String form of a POI type.
func ParsePoiType(s string) (PoiType, error) {
	for i, name := range poiTypeNames {
		if name == s {
			return PoiType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: poi type %q", ErrUnknownName, s)
}

// StreetType is the ranking-relevant class of a street.
type StreetType uint8

const (
	StreetDefault StreetType = iota
	StreetPedestrian
	StreetCycleway
	StreetOutdoor
	StreetMinors
	StreetResidential
	StreetRegular
	StreetMotorway

	streetTypeCount
)

// StreetTypeCount is the number of street types.
const StreetTypeCount = int(streetTypeCount)

var streetTypeNames = [streetTypeCount]string{
	"Default",
	"Pedestrian",
	"Cycleway",
	"Outdoor",
	"Minors",
	"Residential",
	"Regular",
	"Motorway",
}

// Valid reports whether s is a declared street type.
func (s StreetType) Valid() bool {
	return s < streetTypeCount
}

func (s StreetType) String() string {
	if !s.Valid() {
		return "StreetType(" + strconv.Itoa(int(s)) + ")"
	}
	return streetTypeNames[s]
}

// ParseStreetType parses the String form of a street type.
func ParseStreetType(s string) (StreetType, error) {
	for i, name := range streetTypeNames {
		if name == s {
			return StreetType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: street type %q", ErrUnknownName, s)
}

type classifKind uint8

const (
	classifNone classifKind = iota
	classifPoi
	classifStreet
)

// ClassifType carries either a PoiType or a StreetType, never both.
// Which one is meaningful is decided by the candidate's ResultType.
type ClassifType struct {
	kind  classifKind
	value uint8
}

// PoiClassif wraps a POI type.
func PoiClassif(p PoiType) ClassifType {
	return ClassifType{kind: classifPoi, value: uint8(p)}
}

// StreetClassif wraps a street type.
func StreetClassif(s StreetType) ClassifType {
	return ClassifType{kind: classifStreet, value: uint8(s)}
}

// IsPoi reports whether c holds a POI type.
func (c ClassifType) IsPoi() bool { return c.kind == classifPoi }

// IsStreet reports whether c holds a street type.
func (c ClassifType) IsStreet() bool { return c.kind == classifStreet }

// Poi returns the POI payload. It panics if c holds something else.
func (c ClassifType) Poi() PoiType {
	if c.kind != classifPoi {
		panic("ranking: ClassifType does not hold a PoiType")
	}
	p := PoiType(c.value)
	if !p.Valid() {
		panic("ranking: PoiType out of range: " + p.String())
	}
	return p
}

// Street returns the street payload. It panics if c holds something else.
func (c ClassifType) Street() StreetType {
	if c.kind != classifStreet {
		panic("ranking: ClassifType does not hold a StreetType")
	}
	s := StreetType(c.value)
	if !s.Valid() {
		panic("ranking: StreetType out of range: " + s.String())
	}
	return s
}

func (c ClassifType) String() string {
	switch c.kind {
	case classifPoi:
		return PoiType(c.value).String()
	case classifStreet:
		return StreetType(c.value).String()
	}
	return ""
}

// NameScore grades how well the query matched the candidate's name.
type NameScore uint8

const (
	NameScoreZero NameScore = iota
	NameScoreSubstring
	NameScorePrefix
	NameScoreFirstMatch
	NameScoreFullPrefix
	NameScoreFullMatch

	nameScoreCount
)

// NameScoreCount is the number of name score grades.
const NameScoreCount = int(nameScoreCount)

var nameScoreNames = [nameScoreCount]string{
	"Zero",
	"Substring",
	"Prefix",
	"First Match",
	"Full Prefix",
	"Full Match",
}

// Valid reports whether n is a declared grade.
func (n NameScore) Valid() bool {
	return n < nameScoreCount
}

func (n NameScore) String() string {
	if !n.Valid() {
		return "NameScore(" + strconv.Itoa(int(n)) + ")"
	}
	return nameScoreNames[n]
}

// ParseNameScore parses the String form of a name score.
func ParseNameScore(s string) (NameScore, error) {
	for i, name := range nameScoreNames {
		if name == s {
			return NameScore(i), nil
		}
	}
	return 0, fmt.Errorf("%w: name score %q", ErrUnknownName, s)
}

// ErrorsMade is the edit distance of the best bounded-error name match.
// The zero value is invalid: no bounded-error match was attempted or found.
type ErrorsMade struct {
	Count int
	valid bool
}

// NewErrorsMade returns a valid error count.
func NewErrorsMade(count int) ErrorsMade {
	return ErrorsMade{Count: count, valid: true}
}

// InvalidErrorsMade returns the "no match" marker.
func InvalidErrorsMade() ErrorsMade {
	return ErrorsMade{}
}

// IsValid reports whether a bounded-error match was made.
func (e ErrorsMade) IsValid() bool { return e.valid }

func (e ErrorsMade) String() string {
	if !e.valid {
		return "ErrorsMade [ invalid ]"
	}
	return "ErrorsMade [ " + strconv.Itoa(e.Count) + " ]"
}

// MaxErrorsForTokenLength returns how many typos are tolerated in a token of
// the given length.
func MaxErrorsForTokenLength(length int) int {
	if length < 4 {
		return 0
	}
	if length < 8 {
		return 1
	}
	return 2
}

// TokenRange is a half-open range [Begin, End) of query token positions.
type TokenRange struct {
	Begin int
	End   int
}

// Len returns the number of positions in the range.
func (r TokenRange) Len() int {
	if r.End <= r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// Empty reports whether the range holds no positions.
func (r TokenRange) Empty() bool { return r.Len() == 0 }

// Positions returns every position in the range in order.
func (r TokenRange) Positions() []int {
	ps := make([]int, 0, r.Len())
	for pos := r.Begin; pos < r.End; pos++ {
		ps = append(ps, pos)
	}
	return ps
}

// Contains reports whether pos lies in the range.
func (r TokenRange) Contains(pos int) bool {
	return pos >= r.Begin && pos < r.End
}

// TokenRanges holds, per result type, the query tokens matched to that type.
type TokenRanges [resultTypeCount]TokenRange

// Empty reports whether no range is set.
func (tr *TokenRanges) Empty() bool {
	for _, r := range tr {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// Parse reconstructs the result type assigned to each of the numTokens query
// positions. It panics if a position is out of range, assigned twice, or not
// assigned at all.
func (tr *TokenRanges) Parse(numTokens int) []ResultType {
	const unassigned = resultTypeCount
	types := make([]ResultType, numTokens)
	for i := range types {
		types[i] = unassigned
	}
	for t, r := range tr {
		for pos := r.Begin; pos < r.End; pos++ {
			if pos < 0 || pos >= numTokens {
				panic(fmt.Sprintf("ranking: token position %d outside [0, %d)", pos, numTokens))
			}
			if types[pos] != unassigned {
				panic(fmt.Sprintf("ranking: token position %d assigned to both %s and %s", pos, types[pos], ResultType(t)))
			}
			types[pos] = ResultType(t)
		}
	}
	for pos, t := range types {
		if t == unassigned {
			panic(fmt.Sprintf("ranking: token position %d not assigned to any result type", pos))
		}
	}
	return types
}

// Package classify maps a candidate's taxonomy types to the POI and street
// classes the ranking model distinguishes.
package classify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/taxonomy"
)

// ErrUnresolvable is returned when a predicate path is missing from the registry.
var ErrUnresolvable = errors.New("classifier path not in taxonomy")

// TypeSet matches a holder that has any of its types or a subtype of them.
type TypeSet []taxonomy.Type

// Matches reports whether h has a member of s, including via subclass.
func (s TypeSet) Matches(h taxonomy.Holder) bool {
	for _, t := range s {
		if h.HasWithSubclass(t) {
			return true
		}
	}
	return false
}

var (
	eatPaths = [][]string{
		{"amenity", "bar"}, {"amenity", "biergarten"}, {"amenity", "cafe"}, {"amenity", "fast_food"},
		{"amenity", "food_court"}, {"amenity", "ice_cream"}, {"amenity", "pub"}, {"amenity", "restaurant"},
	}
	hotelPaths = [][]string{
		{"tourism", "alpine_hut"}, {"tourism", "apartment"}, {"tourism", "camp_site"},
		{"tourism", "chalet"}, {"tourism", "guest_house"}, {"tourism", "hostel"},
		{"tourism", "hotel"}, {"tourism", "motel"}, {"tourism", "resort"}, {"tourism", "wilderness_hut"},
	}
	transportMajorPaths = [][]string{
		{"railway", "station"}, {"railway", "station", "subway"}, {"aeroway", "aerodrome"},
	}
	transportLocalPaths = [][]string{
		{"highway", "bus_stop"}, {"railway", "tram_stop"}, {"railway", "halt"},
		{"public_transport", "platform"}, {"amenity", "ferry_terminal"},
	}
	attractionPaths = [][]string{
		{"leisure", "beach_resort"}, {"leisure", "garden"}, {"leisure", "marina"},
		{"leisure", "nature_reserve"}, {"leisure", "park"},
	}
	shopOrAmenityPaths = [][]string{
		{"shop"},
		{"amenity", "bank"}, {"amenity", "brothel"}, {"amenity", "car_rental"}, {"amenity", "casino"},
		{"amenity", "cinema"}, {"amenity", "clinic"}, {"amenity", "hospital"}, {"amenity", "library"},
		{"amenity", "marketplace"}, {"amenity", "nightclub"}, {"amenity", "pharmacy"},
		{"amenity", "post_office"}, {"amenity", "stripclub"}, {"amenity", "theatre"},
	}
	servicePaths = [][]string{
		{"barrier"}, {"power"}, {"traffic_calming"},
	}
)

// Category and language whose types count as attractions.
const (
	attractionCategory = "sights"
	attractionLang     = "en"
)

type poiRule struct {
	poi ranking.PoiType
	set TypeSet
}

// Classifier assigns POI and street classes. It is immutable after New and
// safe for concurrent use.
type Classifier struct {
	reg   taxonomy.Registry
	rules []poiRule

	streets []streetRule
}

// New resolves every predicate against reg and cats. Any path or category
// missing from them is an error.
func New(reg taxonomy.Registry, cats taxonomy.Categories) (*Classifier, error) {
	c := &Classifier{reg: reg}

	add := func(p ranking.PoiType, paths [][]string, extra ...taxonomy.Type) error {
		set, err := resolve(reg, paths)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		members := make(TypeSet, 0, len(extra)+len(set))
		members = append(members, extra...)
		c.rules = append(c.rules, poiRule{poi: p, set: append(members, set...)})
		return nil
	}

	sights, err := cats.CategoryTypes(attractionCategory, attractionLang)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
	}

	// Order is priority: the first matching rule wins.
	steps := []struct {
		poi   ranking.PoiType
		paths [][]string
		extra []taxonomy.Type
	}{
		{ranking.PoiEat, eatPaths, nil},
		{ranking.PoiHotel, hotelPaths, nil},
		{ranking.PoiTransportMajor, transportMajorPaths, nil},
		{ranking.PoiTransportLocal, transportLocalPaths, nil},
		{ranking.PoiAttraction, attractionPaths, sights},
		{ranking.PoiShopOrAmenity, shopOrAmenityPaths, nil},
		{ranking.PoiService, servicePaths, nil},
	}
	for _, s := range steps {
		if err := add(s.poi, s.paths, s.extra...); err != nil {
			return nil, err
		}
	}

	if c.streets, err = resolveStreets(reg); err != nil {
		return nil, err
	}
	return c, nil
}

func resolve(reg taxonomy.Registry, paths [][]string) (TypeSet, error) {
	set := make(TypeSet, 0, len(paths))
	for _, p := range paths {
		t, err := reg.TypeByPath(p...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnresolvable, err)
		}
		set = append(set, t)
	}
	return set, nil
}

// ClassifyPoi returns the class of the first matching rule, in the order
// Eat, Hotel, TransportMajor, TransportLocal, Attraction, ShopOrAmenity,
// Service. Holders matching none are General.
func (c *Classifier) ClassifyPoi(h taxonomy.Holder) ranking.PoiType {
	for _, r := range c.rules {
		if r.set.Matches(h) {
			return r.poi
		}
	}
	return ranking.PoiGeneral
}

// Classify returns the ClassifType for a candidate of result type t: a POI
// class for POIs, a street class for streets, and nothing otherwise.
func (c *Classifier) Classify(t ranking.ResultType, h taxonomy.Holder) ranking.ClassifType {
	switch {
	case t.IsPoi():
		return ranking.PoiClassif(c.ClassifyPoi(h))
	case t == ranking.TypeStreet:
		return ranking.StreetClassif(c.ClassifyStreet(h))
	}
	return ranking.ClassifType{}
}

// ClassifyPaths resolves raw dash-separated tags and classifies them.
func (c *Classifier) ClassifyPaths(t ranking.ResultType, paths []string) (ranking.ClassifType, error) {
	types := make(taxonomy.Types, 0, len(paths))
	for _, p := range paths {
		typ, err := c.reg.TypeByPath(p)
		if err != nil {
			return ranking.ClassifType{}, err
		}
		types = append(types, typ)
	}
	return c.Classify(t, types), nil
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
	defaultErr        error
)

// Default returns a classifier over the embedded taxonomy and categories.
func Default() (*Classifier, error) {
	defaultOnce.Do(func() {
		reg, err := taxonomy.Default()
		if err != nil {
			defaultErr = err
			return
		}
		cats, err := taxonomy.DefaultCategories()
		if err != nil {
			defaultErr = err
			return
		}
		defaultClassifier, defaultErr = New(reg, cats)
	})
	return defaultClassifier, defaultErr
}

// ErrCategoriesRequired is returned by Load for a custom taxonomy without a
// categories file, since the embedded categories only resolve against the
// embedded taxonomy.
var ErrCategoriesRequired = errors.New("categories path is required with a custom taxonomy")

// Load builds a classifier from YAML files. Empty paths select the embedded
// data; a custom taxonomy needs its own categories file.
func Load(taxonomyPath, categoriesPath string) (*Classifier, error) {
	if taxonomyPath == "" && categoriesPath == "" {
		return Default()
	}

	var reg *taxonomy.Taxonomy
	var err error
	if taxonomyPath == "" {
		reg, err = taxonomy.Default()
	} else {
		reg, err = taxonomy.LoadFile(taxonomyPath)
	}
	if err != nil {
		return nil, err
	}

	if categoriesPath == "" {
		return nil, ErrCategoriesRequired
	}
	cats, err := taxonomy.LoadCategoriesFile(categoriesPath, reg)
	if err != nil {
		return nil, err
	}
	return New(reg, cats)
}

package classify

import (
	"fmt"

	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/taxonomy"
)

type streetRule struct {
	street ranking.StreetType
	set    TypeSet
}

// Highway values per street class, most important class first.
var streetHighways = []struct {
	street ranking.StreetType
	values []string
}{
	{ranking.StreetMotorway, []string{"motorway", "motorway_link", "trunk", "trunk_link"}},
	{ranking.StreetRegular, []string{"primary", "primary_link", "secondary", "secondary_link", "tertiary", "tertiary_link"}},
	{ranking.StreetResidential, []string{"residential"}},
	{ranking.StreetMinors, []string{"service", "living_street", "unclassified", "road"}},
	{ranking.StreetOutdoor, []string{"track", "bridleway"}},
	{ranking.StreetCycleway, []string{"cycleway"}},
	{ranking.StreetPedestrian, []string{"pedestrian", "footway", "path", "steps"}},
}

func resolveStreets(reg taxonomy.Registry) ([]streetRule, error) {
	rules := make([]streetRule, 0, len(streetHighways))
	for _, s := range streetHighways {
		paths := make([][]string, len(s.values))
		for i, v := range s.values {
			paths[i] = []string{"highway", v}
		}
		set, err := resolve(reg, paths)
		if err != nil {
			return nil, fmt.Errorf("street %s: %w", s.street, err)
		}
		rules = append(rules, streetRule{street: s.street, set: set})
	}
	return rules, nil
}

// ClassifyStreet returns the class of the most important highway tag of h,
// or StreetDefault when h carries none.
func (c *Classifier) ClassifyStreet(h taxonomy.Holder) ranking.StreetType {
	for _, r := range c.streets {
		if r.set.Matches(h) {
			return r.street
		}
	}
	return ranking.StreetDefault
}

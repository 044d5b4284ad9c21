package parser

import (
	"regexp"
	"sort"
	"strings"

	"PolyEdge/internal/domain/models"
)

type city struct {
	aliases []string
	loc     models.Location
}

var knownCities = []city{
	{[]string{"new york", "nyc"}, models.Location{Name: "New York", Lat: 40.7128, Lon: -74.0060}},
	{[]string{"los angeles", "la"}, models.Location{Name: "Los Angeles", Lat: 34.0522, Lon: -118.2437}},
	{[]string{"chicago"}, models.Location{Name: "Chicago", Lat: 41.8781, Lon: -87.6298}},
	{[]string{"miami"}, models.Location{Name: "Miami", Lat: 25.7617, Lon: -80.1918}},
	{[]string{"houston"}, models.Location{Name: "Houston", Lat: 29.7604, Lon: -95.3698}},
	{[]string{"phoenix"}, models.Location{Name: "Phoenix", Lat: 33.4484, Lon: -112.0740}},
	{[]string{"denver"}, models.Location{Name: "Denver", Lat: 39.7392, Lon: -104.9903}},
	{[]string{"seattle"}, models.Location{Name: "Seattle", Lat: 47.6062, Lon: -122.3321}},
	{[]string{"boston"}, models.Location{Name: "Boston", Lat: 42.3601, Lon: -71.0589}},
	{[]string{"atlanta"}, models.Location{Name: "Atlanta", Lat: 33.7490, Lon: -84.3880}},
	{[]string{"washington dc", "dc"}, models.Location{Name: "Washington DC", Lat: 38.9072, Lon: -77.0369}},
	{[]string{"san francisco", "sf"}, models.Location{Name: "San Francisco", Lat: 37.7749, Lon: -122.4194}},
	{[]string{"dallas"}, models.Location{Name: "Dallas", Lat: 32.7767, Lon: -96.7970}},
	{[]string{"london"}, models.Location{Name: "London", Lat: 51.5074, Lon: -0.1278}},
	{[]string{"paris"}, models.Location{Name: "Paris", Lat: 48.8566, Lon: 2.3522}},
	{[]string{"tokyo"}, models.Location{Name: "Tokyo", Lat: 35.6762, Lon: 139.6503}},
}

// cityIndex matches whole-word aliases; the leftmost mention wins, then the longest alias.
type cityIndex struct {
	re    *regexp.Regexp
	byKey map[string]models.Location
}

func newCityIndex(cities []city) *cityIndex {
	idx := &cityIndex{byKey: make(map[string]models.Location)}
	var aliases []string
	for _, c := range cities {
		for _, a := range c.aliases {
			idx.byKey[a] = c.loc
			aliases = append(aliases, regexp.QuoteMeta(a))
		}
	}
	sort.Slice(aliases, func(i, j int) bool { return len(aliases[i]) > len(aliases[j]) })
	idx.re = regexp.MustCompile(`\b(` + strings.Join(aliases, "|") + `)\b`)
	return idx
}

func (c *cityIndex) find(text string) (models.Location, bool) {
	m := c.re.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return models.Location{}, false
	}
	loc, ok := c.byKey[m[1]]
	return loc, ok
}

// Cities lists every known location.
func Cities() []models.Location {
	out := make([]models.Location, len(knownCities))
	for i, c := range knownCities {
		out[i] = c.loc
	}
	return out
}

package geocode

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"ridesync/internal/domain/entities"
	"ridesync/pkg/utils"
)

// maxReverseKm is how far a point may be from a town and still be named
// after it. It must stay below one cell height (about 19 km) so the 3x3
// block always covers the radius.
const maxReverseKm = 15.0

// californiaCities is the offline fallback used when no online geocoder is
// configured. Keys are the normalized search names.
var californiaCities = map[string]Place{
	"dixon":         {Name: "Dixon, CA", Location: entities.NewLocation(38.4455, -121.8233)},
	"fairfield":     {Name: "Fairfield, CA", Location: entities.NewLocation(38.2494, -122.0401)},
	"vacaville":     {Name: "Vacaville, CA", Location: entities.NewLocation(38.3565, -121.9877)},
	"davis":         {Name: "Davis, CA", Location: entities.NewLocation(38.5449, -121.7405)},
	"sacramento":    {Name: "Sacramento, CA", Location: entities.NewLocation(38.5816, -121.4944)},
	"san francisco": {Name: "San Francisco, CA", Location: entities.NewLocation(37.7749, -122.4194)},
	"berkeley":      {Name: "Berkeley, CA", Location: entities.NewLocation(37.8715, -122.2730)},
	"oakland":       {Name: "Oakland, CA", Location: entities.NewLocation(37.8044, -122.2712)},
	"san jose":      {Name: "San Jose, CA", Location: entities.NewLocation(37.3382, -121.8863)},
	"palo alto":     {Name: "Palo Alto, CA", Location: entities.NewLocation(37.4419, -122.1430)},
	"napa":          {Name: "Napa, CA", Location: entities.NewLocation(38.2975, -122.2869)},
	"vallejo":       {Name: "Vallejo, CA", Location: entities.NewLocation(38.1041, -122.2566)},
	"santa rosa":    {Name: "Santa Rosa, CA", Location: entities.NewLocation(38.4404, -122.7141)},
	"richmond":      {Name: "Richmond, CA", Location: entities.NewLocation(37.9358, -122.3478)},
	"concord":       {Name: "Concord, CA", Location: entities.NewLocation(37.9722, -122.0016)},
}

var (
	stateSuffix = regexp.MustCompile(`,?\s*ca(lifornia)?$`)
	nonLetters  = regexp.MustCompile(`[^a-z\s]`)
)

// Gazetteer resolves a fixed set of named places without any network access.
type Gazetteer struct {
	names  []string         // sorted, for deterministic partial matches
	places map[string]Place // normalized name -> place
	cells  map[string][]Place
}

// NewGazetteer indexes the built-in California towns.
func NewGazetteer() *Gazetteer {
	return NewGazetteerWith(californiaCities)
}

// NewGazetteerWith indexes places keyed by their search name.
func NewGazetteerWith(places map[string]Place) *Gazetteer {
	g := &Gazetteer{
		places: make(map[string]Place, len(places)),
		cells:  make(map[string][]Place),
	}
	for name, p := range places {
		key := normalizeQuery(name)
		g.names = append(g.names, key)
		g.places[key] = p

		cell := encodeCell(p.Location.Latitude, p.Location.Longitude, cellPrecision)
		g.cells[cell] = append(g.cells[cell], p)
	}
	sort.Strings(g.names)
	return g
}

// normalizeQuery lowercases, drops a trailing state, and strips everything
// but letters and spaces.
func normalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = stateSuffix.ReplaceAllString(q, "")
	q = nonLetters.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

// Search matches an exact name first, then any name that contains the query
// or is contained in it.
func (g *Gazetteer) Search(_ context.Context, query string) (Place, error) {
	q := normalizeQuery(query)
	if q == "" {
		return Place{}, ErrNoMatch
	}
	if p, ok := g.places[q]; ok {
		return p, nil
	}
	for _, name := range g.names {
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return g.places[name], nil
		}
	}
	return Place{}, ErrNoMatch
}

// Reverse names the nearest place within maxReverseKm.
func (g *Gazetteer) Reverse(_ context.Context, loc entities.Location) (Place, error) {
	best, bestKm := Place{}, maxReverseKm
	found := false
	for _, cell := range blockAround(loc.Latitude, loc.Longitude, cellPrecision) {
		for _, p := range g.cells[cell] {
			km := utils.HaversineDistance(loc.Latitude, loc.Longitude, p.Location.Latitude, p.Location.Longitude)
			if km <= bestKm {
				best, bestKm, found = p, km, true
			}
		}
	}
	if !found {
		return Place{}, ErrNoMatch
	}
	return best, nil
}

// Lookup resolves raw coordinates or a known place name. Its signature
// matches services.PlaceLookup.
func (g *Gazetteer) Lookup(text string) (entities.Location, bool) {
	if loc, err := entities.ParseLocation(text); err == nil {
		return loc, true
	}
	p, err := g.Search(context.Background(), text)
	if err != nil {
		return entities.Location{}, false
	}
	return p.Location, true
}

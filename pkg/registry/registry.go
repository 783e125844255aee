// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"os"
	"strings"
)

// MatchKind describes how a lookup matched the registry.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchPartial
)

// Registry is an in-memory facility directory keyed by normalized name.
type Registry struct {
	facilities map[string]Facility
}

// LoadRegistry reads a facility registry from a JSON file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg FacilityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}

	r := &Registry{facilities: make(map[string]Facility, len(reg.Facilities))}
	for _, f := range reg.Facilities {
		key := f.Key
		if key == "" {
			key = strings.ToLower(f.OfficialName)
		}
		r.facilities[key] = f
	}
	return r, nil
}

// Default returns the built-in registry of known medical facilities.
func Default() *Registry {
	return &Registry{facilities: map[string]Facility{
		"armidale and new england hospital": {
			Key:          "armidale and new england hospital",
			OfficialName: "Armidale and New England Hospital",
			Location:     "Armidale, New South Wales, Australia",
			Type:         "Public Hospital",
			Established:  "1950s",
			Status:       "Active",
			VerificationSources: []string{
				"NSW Health Directory",
				"Australian Hospital Association",
				"Google Maps verification",
			},
			Coordinates: Coordinates{Latitude: -30.5136, Longitude: 151.6669},
			PostalCode:  "2350",
			Phone:       "+61 2 6776 8888",
			Website:     "https://www.health.nsw.gov.au/",
			Services:    []string{"Emergency", "Maternity", "General Medicine", "Surgery"},
		},
		"royal north shore hospital": {
			Key:          "royal north shore hospital",
			OfficialName: "Royal North Shore Hospital",
			Location:     "St Leonards, New South Wales, Australia",
			Type:         "Public Hospital",
			Status:       "Active",
		},
		"westmead hospital": {
			Key:          "westmead hospital",
			OfficialName: "Westmead Hospital",
			Location:     "Westmead, New South Wales, Australia",
			Type:         "Public Hospital",
			Status:       "Active",
		},
	}}
}

// Normalize lowercases a place name and strips location suffixes that would
// prevent an exact match, e.g. "Hospital Name, City" -> "Hospital Name".
func Normalize(place string) string {
	normalized := strings.ToLower(strings.TrimSpace(place))

	for _, suffix := range []string{", armidale", ", new south wales", ", nsw", ", australia"} {
		normalized = strings.ReplaceAll(normalized, suffix, "")
	}

	return normalized
}

// Lookup finds a facility by place name. Exact matches on the normalized name
// win; otherwise a containment match in either direction counts as partial.
func (r *Registry) Lookup(place string) (Facility, MatchKind) {
	normalized := Normalize(place)

	if f, ok := r.facilities[normalized]; ok {
		return f, MatchExact
	}

	for key, f := range r.facilities {
		if strings.Contains(normalized, key) || strings.Contains(key, normalized) {
			return f, MatchPartial
		}
	}

	return Facility{}, MatchNone
}

// PartialMatches collects weaker word-overlap matches for reporting when no
// facility matched.
func (r *Registry) PartialMatches(place string) []Facility {
	normalized := Normalize(place)
	inputWords := strings.Fields(normalized)

	var matches []Facility
	for key, f := range r.facilities {
		if anyWordContained(strings.Fields(key), normalized) || anyWordContained(inputWords, key) {
			matches = append(matches, f)
		}
	}
	return matches
}

func anyWordContained(words []string, s string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Len returns the number of registered facilities.
func (r *Registry) Len() int {
	return len(r.facilities)
}

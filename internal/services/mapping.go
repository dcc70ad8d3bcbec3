package services

import (
	"fmt"
	"sort"
	"strings"
)

// FieldMapping pairs a payload key with the trackpoint field it fills.
type FieldMapping struct {
	Key   string
	Field string
}

// Profile describes one decoder: the endpoint it is served on and how its
// payload keys map onto trackpoint fields.
type Profile struct {
	App     string
	Name    string
	Numeric []FieldMapping
	Strings []FieldMapping
}

// ID returns the decoder identifier, "{app}.{name}".
func (p Profile) ID() string { return p.App + "." + p.Name }

// Profiles is the static decoder registry keyed by identifier.
var Profiles = map[string]Profile{
	"gpslocation.owntracks": {
		App:  "gpslocation",
		Name: "owntracks",
		Numeric: []FieldMapping{
			{"acc", "hacc"},
			{"alt", "ele"},
			{"vac", "vacc"},
			{"vel", "speed"},
		},
	},
	"owntracks.owntracks": {
		App:  "owntracks",
		Name: "owntracks",
		Numeric: []FieldMapping{
			{"acc", "hacc"},
			{"alt", "ele"},
			{"vac", "vacc"},
			{"vel", "speed"},
			{"batt", "batt"},
		},
		Strings: []FieldMapping{
			{"conn", "conn"},
			{"tid", "tid"},
		},
	},
	"gpslocation.gpx": {
		App:  "gpslocation",
		Name: "gpx",
		Numeric: []FieldMapping{
			{"hacc", "hacc"},
			{"ele", "ele"},
			{"vacc", "vacc"},
			{"speed", "speed"},
			{"course", "course"},
			{"hdop", "hdop"},
			{"vdop", "vdop"},
			{"pdop", "pdop"},
			{"tdop", "tdop"},
			{"sat", "sat"},
			{"satavail", "satavail"},
			{"batt", "batt"},
		},
		Strings: []FieldMapping{
			{"conn", "conn"},
			{"tid", "tid"},
		},
	},
}

// LookupProfiles resolves decoder identifiers against the registry. It fails
// on the first unknown identifier.
func LookupProfiles(ids []string) ([]Profile, error) {
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		p, ok := Profiles[strings.TrimSpace(id)]
		if !ok {
			return nil, fmt.Errorf("unknown decoder %q (known: %s)", id, strings.Join(ProfileIDs(), ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

// ProfileIDs returns the registered decoder identifiers, sorted.
func ProfileIDs() []string {
	ids := make([]string, 0, len(Profiles))
	for id := range Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package config

import "time"

// Profile is a named preset for the probe budget.
type Profile struct {
	Name     string
	Count    int
	Timeout  time.Duration
	Interval time.Duration
}

// profiles contains the built-in profile presets.
var profiles = map[string]Profile{
	"quick": {
		Name:    "quick",
		Count:   2,
		Timeout: 2 * time.Second,
	},
	"standard": {
		Name:    "standard",
		Count:   4,
		Timeout: 5 * time.Second,
	},
	"thorough": {
		Name:     "thorough",
		Count:    10,
		Timeout:  5 * time.Second,
		Interval: 200 * time.Millisecond,
	},
}

// GetProfile returns the profile for the given name.
// Falls back to "standard" if unknown.
func GetProfile(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["standard"]
}

// ProfileNames returns available profile names.
func ProfileNames() []string {
	return []string{"quick", "standard", "thorough"}
}

func knownProfile(name string) bool {
	_, ok := profiles[name]
	return ok
}

package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiliankoe/nback/internal/nback"
)

const DefaultProfile = "standard"

// Profiles maps a difficulty name to a validated game config.
type Profiles map[string]nback.Config

func BuiltinProfiles() Profiles {
	easy := nback.DefaultConfig()
	easy.N = 1
	easy.Interval = 3000 * time.Millisecond

	hard := nback.DefaultConfig()
	hard.N = 3
	hard.ItemsPerBlock = 25
	hard.Interval = 2000 * time.Millisecond

	return Profiles{"easy": easy, DefaultProfile: nback.DefaultConfig(), "hard": hard}
}

type profilesFile struct {
	Profiles map[string]yaml.Node `yaml:"profiles"`
}

// LoadProfiles merges the YAML file at path over the built-in profiles.
// Fields a profile omits keep the standard defaults. An empty path returns
// the built-ins.
func LoadProfiles(path string) (Profiles, error) {
	out := BuiltinProfiles()
	if path == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return parseProfiles(b, out)
}

func parseProfiles(b []byte, into Profiles) (Profiles, error) {
	var f profilesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for name, node := range f.Profiles {
		cfg := nback.DefaultConfig()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		into[name] = cfg
	}
	return into, nil
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get falls back to the standard profile for an empty name.
func (p Profiles) Get(name string) (nback.Config, bool) {
	if name == "" {
		name = DefaultProfile
	}
	cfg, ok := p[name]
	return cfg, ok
}

package aerodrome

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source is one registry entry: a CSV and the parser that reads it. Key is
// the path relative to the data directory and names the source in output.
type Source struct {
	Key    string
	Path   string
	Parser Parser
}

// Registry is the ordered list of sources combined by the workflows.
type Registry []Source

// Registry keys of the known sources.
const (
	KeyMX          = "mx/afac/aerodromos.csv"
	KeyFAA         = "us/faa/nasr/APT_BASE.csv"
	KeyOurAirports = "world/ourairports/airports.csv"
	KeyDaylight    = "world/osm/daylight/aerodrome.csv"
	KeyOverpass    = "world/osm/overpass/aerodrome.csv"
	KeyWikidata    = "world/wikidata/airports.csv"
	KeyRAF         = "us/raf/airfields.csv"
)

var parsers = map[string]Parser{
	MXParser{}.Name():          MXParser{},
	FAAParser{}.Name():         FAAParser{},
	OurAirportsParser{}.Name(): OurAirportsParser{},
	DaylightParser{}.Name():    DaylightParser{},
	OverpassParser{}.Name():    OverpassParser{},
	WikidataParser{}.Name():    WikidataParser{},
	RAFParser{}.Name():         RAFParser{},
}

// ParserByName returns the parser registered under name.
func ParserByName(name string) (Parser, error) {
	p, ok := parsers[name]
	if !ok {
		return nil, errors.Errorf("unknown parser [%s]", name)
	}
	return p, nil
}

// NewSource builds a registry entry under dataDir.
func NewSource(dataDir, key string, p Parser) Source {
	return Source{Key: key, Path: filepath.Join(dataDir, filepath.FromSlash(key)), Parser: p}
}

// DefaultRegistry returns the sources combined when no override is given.
func DefaultRegistry(dataDir string) Registry {
	return Registry{
		NewSource(dataDir, KeyMX, MXParser{}),
		NewSource(dataDir, KeyFAA, FAAParser{}),
		NewSource(dataDir, KeyOurAirports, OurAirportsParser{}),
		NewSource(dataDir, KeyDaylight, DaylightParser{}),
	}
}

// Lookup returns the source registered under key.
func (r Registry) Lookup(key string) (Source, bool) {
	for _, s := range r {
		if s.Key == key {
			return s, true
		}
	}
	return Source{}, false
}

type registryFile struct {
	Sources []struct {
		Path   string `yaml:"path"`
		Parser string `yaml:"parser"`
	} `yaml:"sources"`
}

// ParseRegistry reads a YAML registry:
//
//	sources:
//	  - path: us/faa/nasr/APT_BASE.csv
//	    parser: faa-nasr
func ParseRegistry(b []byte, dataDir string) (Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse registry")
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("registry has no sources")
	}
	r := make(Registry, 0, len(f.Sources))
	for i, s := range f.Sources {
		if s.Path == "" {
			return nil, errors.Errorf("registry entry %d has no path", i)
		}
		p, err := ParserByName(s.Parser)
		if err != nil {
			return nil, errors.Wrapf(err, "registry entry [%s]", s.Path)
		}
		r = append(r, NewSource(dataDir, s.Path, p))
	}
	return r, nil
}

// LoadRegistry reads a YAML registry from path.
func LoadRegistry(path, dataDir string) (Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read registry")
	}
	return ParseRegistry(b, dataDir)
}

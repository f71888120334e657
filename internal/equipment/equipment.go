// Package equipment is the directory of gym stations, each reachable by its QR code.
package equipment

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Station is one piece of equipment with a QR code on it.
type Station struct {
	ID            string   `yaml:"id" json:"id"`
	QRCode        string   `yaml:"qr_code" json:"qr_code"`
	Name          string   `yaml:"name" json:"name"`
	Type          string   `yaml:"type" json:"type"`
	Status        string   `yaml:"status" json:"status"`
	Difficulty    string   `yaml:"difficulty" json:"difficulty"`
	MaxTime       string   `yaml:"max_time" json:"max_time"`
	Calories      string   `yaml:"calories" json:"calories"`
	ExerciseURL   string   `yaml:"exercise_url" json:"exercise_url"`
	TargetMuscles []string `yaml:"target_muscles" json:"target_muscles"`
	Instructions  []string `yaml:"instructions" json:"instructions"`
}

// Slug is the last segment of the station's exercise URL.
func (s Station) Slug() string {
	return path.Base(s.ExerciseURL)
}

// QRTarget is the link printed on the station's QR code. The acquisition tag
// lets page visits coming through the code be told apart from direct ones.
func (s Station) QRTarget(baseURL, acquisitionTag string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	u.Path = path.Join(u.Path, "/equipments", s.Slug())
	q := u.Query()
	q.Set("utm_source", acquisitionTag)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Catalog indexes stations by QR code.
type Catalog struct {
	stations []Station
	byCode   map[string]Station
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
	defaultCatalogErr  error
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = Parse(catalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

// Parse builds a catalog from its YAML form. QR codes must be unique.
func Parse(data []byte) (*Catalog, error) {
	var stations []Station
	if err := yaml.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("error parsing equipment catalog: %w", err)
	}

	c := &Catalog{byCode: make(map[string]Station, len(stations))}
	for _, s := range stations {
		if s.QRCode == "" {
			return nil, fmt.Errorf("equipment %q has no qr code", s.Name)
		}
		if _, dup := c.byCode[s.QRCode]; dup {
			return nil, fmt.Errorf("duplicate qr code %q", s.QRCode)
		}
		c.byCode[s.QRCode] = s
		c.stations = append(c.stations, s)
	}
	sort.SliceStable(c.stations, func(i, j int) bool { return c.stations[i].Name < c.stations[j].Name })
	return c, nil
}

// List returns every station sorted by name.
func (c *Catalog) List() []Station {
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// ByType returns the stations of the given type, case-insensitively.
func (c *Catalog) ByType(kind string) []Station {
	out := []Station{}
	for _, s := range c.stations {
		if strings.EqualFold(s.Type, kind) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) Lookup(qrCode string) (Station, bool) {
	s, ok := c.byCode[qrCode]
	return s, ok
}

// FindByExercisePath returns the station whose exercise URL prefixes p,
// e.g. "/exercises/dumbbells/bicep-curl" resolves to the dumbbell station.
func (c *Catalog) FindByExercisePath(p string) (Station, bool) {
	clean := path.Clean("/" + strings.TrimSpace(p))
	for _, s := range c.stations {
		if clean == s.ExerciseURL || strings.HasPrefix(clean, s.ExerciseURL+"/") {
			return s, true
		}
	}
	return Station{}, false
}

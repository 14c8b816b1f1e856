package geo

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed geodata/cl_regions.geojson
var regionsFS embed.FS

// Region is one first-level administrative division and its communes.
type Region struct {
	Name     string
	Code     string // ISO 3166-2
	Capital  string
	Point    orb.Point // capital, [lon, lat]
	Communes []string
}

// AdminLookup maps regions to their communes. It has no mutation API;
// every accessor returns copies.
type AdminLookup struct {
	regions  []Region
	byName   map[string]int    // canonical name -> index
	byKey    map[string]int    // normalized name or ISO code -> index
	communes map[string]string // canonical commune -> region
}

// NewAdminLookup parses the embedded region table.
func NewAdminLookup() (*AdminLookup, error) {
	data, err := regionsFS.ReadFile("geodata/cl_regions.geojson")
	if err != nil {
		return nil, fmt.Errorf("reading embedded geojson: %w", err)
	}

	fc := &geojson.FeatureCollection{}
	if err := json.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}

	type ordered struct {
		order  int
		region Region
	}
	var rows []ordered
	for _, f := range fc.Features {
		name, _ := f.Properties["NAME"].(string)
		if name == "" {
			return nil, fmt.Errorf("region feature without NAME")
		}
		r := Region{Name: name}
		r.Code, _ = f.Properties["ISO_3166_2"].(string)
		r.Capital, _ = f.Properties["CAPITAL"].(string)
		if p, ok := f.Geometry.(orb.Point); ok {
			r.Point = p
		}
		raw, _ := f.Properties["COMMUNES"].([]any)
		for _, c := range raw {
			if s, ok := c.(string); ok && s != "" {
				r.Communes = append(r.Communes, s)
			}
		}
		order, _ := f.Properties["ORDER"].(float64)
		rows = append(rows, ordered{order: int(order), region: r})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].order < rows[j].order })

	l := &AdminLookup{
		byName:   make(map[string]int, len(rows)),
		byKey:    make(map[string]int, len(rows)*2),
		communes: make(map[string]string),
	}
	for i, row := range rows {
		r := row.region
		if _, dup := l.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region %q", r.Name)
		}
		for _, c := range r.Communes {
			if other, dup := l.communes[c]; dup {
				return nil, fmt.Errorf("commune %q listed in %q and %q", c, other, r.Name)
			}
			l.communes[c] = r.Name
		}
		l.regions = append(l.regions, r)
		l.byName[r.Name] = i
		l.byKey[Normalize(r.Name)] = i
		if r.Code != "" {
			l.byKey[strings.ToLower(r.Code)] = i
		}
	}
	return l, nil
}

var admin = sync.OnceValue(func() *AdminLookup {
	l, err := NewAdminLookup()
	if err != nil {
		panic(fmt.Sprintf("geo: embedded region table: %v", err))
	}
	return l
})

// Admin returns the process-wide lookup, parsed on first use.
func Admin() *AdminLookup {
	return admin()
}

// Regions returns the region names in canonical order.
func (l *AdminLookup) Regions() []string {
	names := make([]string, len(l.regions))
	for i, r := range l.regions {
		names[i] = r.Name
	}
	return names
}

// CommunesOf returns the communes of region, or nil for an unknown region.
func (l *AdminLookup) CommunesOf(region string) []string {
	i, ok := l.byName[region]
	if !ok {
		return nil
	}
	return slices.Clone(l.regions[i].Communes)
}

// Contains reports whether commune belongs to region.
func (l *AdminLookup) Contains(region, commune string) bool {
	r, ok := l.communes[commune]
	return ok && r == region
}

// RegionOf returns the region a commune belongs to.
func (l *AdminLookup) RegionOf(commune string) (string, bool) {
	r, ok := l.communes[commune]
	return r, ok
}

// Region returns the full record of a region.
func (l *AdminLookup) Region(name string) (Region, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Region{}, false
	}
	r := l.regions[i]
	r.Communes = slices.Clone(r.Communes)
	return r, true
}

// Capital returns the capital point of a region.
func (l *AdminLookup) Capital(region string) (orb.Point, bool) {
	i, ok := l.byName[region]
	if !ok {
		return orb.Point{}, false
	}
	return l.regions[i].Point, true
}

// ResolveRegion matches free-form input (any case, with or without
// accents, or the ISO code) to the canonical region name.
func (l *AdminLookup) ResolveRegion(input string) (string, bool) {
	key := Normalize(strings.TrimSpace(input))
	if key == "" {
		return "", false
	}
	if i, ok := l.byKey[key]; ok {
		return l.regions[i].Name, true
	}
	return "", false
}

// ResolveCommune matches free-form input to a canonical commune of region.
// With an empty region every commune is a candidate.
func (l *AdminLookup) ResolveCommune(region, input string) (string, bool) {
	key := Normalize(strings.TrimSpace(input))
	if key == "" {
		return "", false
	}
	for _, r := range l.regions {
		if region != "" && r.Name != region {
			continue
		}
		for _, c := range r.Communes {
			if Normalize(c) == key {
				return c, true
			}
		}
	}
	return "", false
}

// Regions returns the region names of the process-wide lookup.
func Regions() []string { return Admin().Regions() }

// CommunesOf returns the communes of region in the process-wide lookup.
func CommunesOf(region string) []string { return Admin().CommunesOf(region) }

// RegionOf returns the region of commune in the process-wide lookup.
func RegionOf(commune string) (string, bool) { return Admin().RegionOf(commune) }

// Capital returns the capital point of region in the process-wide lookup.
func Capital(region string) (orb.Point, bool) { return Admin().Capital(region) }

// ResolveRegion resolves input against the process-wide lookup.
func ResolveRegion(input string) (string, bool) { return Admin().ResolveRegion(input) }

// ResolveCommune resolves input against the process-wide lookup.
func ResolveCommune(region, input string) (string, bool) {
	return Admin().ResolveCommune(region, input)
}

// Normalize removes accents/diacritics and lowercases text for fuzzy matching.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

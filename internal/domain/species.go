package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultSpecies is the built-in species list: the oyster and common carp case studies.
const DefaultSpecies = "oyster:11:30:0:70,common carp:3:35:0:29"

// slugRe matches runs of characters that are not safe in a directory name.
var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Species names a set of viable ranges. Name is display-only.
type Species struct {
	Name        string `json:"name"`
	Temperature Range  `json:"temperature_c"`
	Depth       Range  `json:"depth_m"`
}

// Slug returns a lowercase, filesystem-safe form of the species name,
// e.g. "Common Carp" -> "common-carp".
func (s Species) Slug() string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s.Name), "-"), "-")
}

// ParseSpecies parses "name:tmin:tmax:dmin:dmax".
func ParseSpecies(s string) (Species, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 {
		return Species{}, fmt.Errorf("species %q: want name:tmin:tmax:dmin:dmax", s)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Species{}, fmt.Errorf("species %q: empty name", s)
	}
	if (Species{Name: name}).Slug() == "" {
		return Species{}, fmt.Errorf("species %q: name has no letters or digits", s)
	}

	var bounds [4]float64
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Species{}, fmt.Errorf("species %q: bound %d: %w", s, i+1, err)
		}
		bounds[i] = v
	}

	sp := Species{
		Name:        name,
		Temperature: Range{Min: bounds[0], Max: bounds[1]},
		Depth:       Range{Min: bounds[2], Max: bounds[3]},
	}
	if !sp.Temperature.valid() || !sp.Depth.valid() {
		return Species{}, fmt.Errorf("species %q: %w", s, ErrInvalidRange)
	}
	return sp, nil
}

// ParseSpeciesList parses a comma-separated list of species definitions.
// Species slugs must be unique since they name output directories.
func ParseSpeciesList(s string) ([]Species, error) {
	var out []Species
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sp, err := ParseSpecies(part)
		if err != nil {
			return nil, err
		}
		if seen[sp.Slug()] {
			return nil, fmt.Errorf("duplicate species %q", sp.Name)
		}
		seen[sp.Slug()] = true
		out = append(out, sp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no species in %q", s)
	}
	return out, nil
}

package region

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrEmptyCatalog is returned when a catalog document contains no provinces.
var ErrEmptyCatalog = errors.New("region: catalog has no provinces")

// catalogDocument is the on-disk shape:
//
//	{
//	  "provinces": {"1001": "福建省"},
//	  "cities":    {"1001": {"2001": "厦门市"}},
//	  "districts": {"2001": {"3007": "思明区"}}
//	}
//
// Values are decoded lazily so that one bad branch does not reject the file.
type catalogDocument struct {
	Provinces map[string]json.RawMessage `json:"provinces"`
	Cities    map[string]json.RawMessage `json:"cities"`
	Districts map[string]json.RawMessage `json:"districts"`
}

// ParseCatalog decodes a JSON catalog document.
//
// Structurally malformed branches are skipped and recorded in Catalog.Dropped
// instead of failing the whole document: non-string or blank names, a city
// map that is not an object, cities under an unknown province, and district
// maps under a city no province lists. Only a document that is not JSON at
// all, or that yields no provinces, is an error.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("region: decode catalog: %w", err)
	}

	c := NewCatalog()

	for code, raw := range doc.Provinces {
		name, ok := decodeName(raw)
		if !ok || code == "" {
			c.Dropped = append(c.Dropped, "provinces/"+code)
			continue
		}
		c.AddProvince(code, name)
	}
	if len(c.Provinces) == 0 {
		return nil, ErrEmptyCatalog
	}

	knownCities := make(map[string]struct{})
	for pc, raw := range doc.Cities {
		if _, ok := c.Provinces[pc]; !ok {
			c.Dropped = append(c.Dropped, "cities/"+pc)
			continue
		}
		var children map[string]json.RawMessage
		if err := json.Unmarshal(raw, &children); err != nil {
			c.Dropped = append(c.Dropped, "cities/"+pc)
			continue
		}
		for cc, nameRaw := range children {
			name, ok := decodeName(nameRaw)
			if !ok || cc == "" {
				c.Dropped = append(c.Dropped, "cities/"+pc+"/"+cc)
				continue
			}
			c.AddCity(pc, cc, name)
			knownCities[cc] = struct{}{}
		}
	}

	for cc, raw := range doc.Districts {
		if _, ok := knownCities[cc]; !ok {
			c.Dropped = append(c.Dropped, "districts/"+cc)
			continue
		}
		var children map[string]json.RawMessage
		if err := json.Unmarshal(raw, &children); err != nil {
			c.Dropped = append(c.Dropped, "districts/"+cc)
			continue
		}
		for dc, nameRaw := range children {
			name, ok := decodeName(nameRaw)
			if !ok || dc == "" {
				c.Dropped = append(c.Dropped, "districts/"+cc+"/"+dc)
				continue
			}
			c.AddDistrict(cc, dc, name)
		}
	}

	slices.Sort(c.Dropped)
	return c, nil
}

func decodeName(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// MarshalJSON encodes the catalog in the document shape ParseCatalog reads.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Provinces map[string]string            `json:"provinces"`
		Cities    map[string]map[string]string `json:"cities"`
		Districts map[string]map[string]string `json:"districts"`
	}{c.Provinces, c.Cities, c.Districts})
}

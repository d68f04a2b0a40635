// Package region holds the reference administrative catalog: a three-level
// province → city → district hierarchy keyed by code, and the lookup index
// built from it.
//
// A Catalog is immutable once parsed. Everything derived from it (the index,
// the composite address list, the version hash) is computed at most once and
// shared without locking.
package region

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"sync"
)

// Province is a top-level division.
type Province struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// City is a second-level division.
type City struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	ProvinceCode string `json:"province_code"`
}

// District is a leaf division.
type District struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	CityCode     string `json:"city_code"`
	ProvinceCode string `json:"province_code"`
}

// Address is one leaf of the catalog walk: a province, a city under it and a
// district under that city. District is zero-valued when the catalog lists no
// districts for the city.
type Address struct {
	Province Province `json:"province"`
	City     City     `json:"city"`
	District District `json:"district"`
}

// HasDistrict reports whether the address carries a district.
func (a Address) HasDistrict() bool {
	return a.District.Name != ""
}

// Catalog is the nested code → name structure of the reference hierarchy.
//
//	Provinces: provinceCode → name
//	Cities:    provinceCode → cityCode → name
//	Districts: cityCode → districtCode → name
//
// A Catalog must not be mutated after it is handed to NewIndex or a matcher.
type Catalog struct {
	Provinces map[string]string
	Cities    map[string]map[string]string
	Districts map[string]map[string]string

	// Dropped lists catalog paths skipped while parsing, e.g. "cities/1001/2009".
	Dropped []string

	addrOnce  sync.Once
	addresses []Address

	versionOnce sync.Once
	version     string
}

// NewCatalog creates an empty catalog ready to be filled.
func NewCatalog() *Catalog {
	return &Catalog{
		Provinces: make(map[string]string),
		Cities:    make(map[string]map[string]string),
		Districts: make(map[string]map[string]string),
	}
}

// AddProvince registers a province.
func (c *Catalog) AddProvince(code, name string) {
	c.Provinces[code] = name
}

// AddCity registers a city under provinceCode.
func (c *Catalog) AddCity(provinceCode, code, name string) {
	m, ok := c.Cities[provinceCode]
	if !ok {
		m = make(map[string]string)
		c.Cities[provinceCode] = m
	}
	m[code] = name
}

// AddDistrict registers a district under cityCode.
func (c *Catalog) AddDistrict(cityCode, code, name string) {
	m, ok := c.Districts[cityCode]
	if !ok {
		m = make(map[string]string)
		c.Districts[cityCode] = m
	}
	m[code] = name
}

// Addresses walks the catalog as a tree and returns one Address per leaf.
// Entries with an empty name and cities whose province is unknown are left
// out. Codes are visited in ascending order so the walk is deterministic.
//
// The result is computed once and shared; callers must not modify it.
func (c *Catalog) Addresses() []Address {
	c.addrOnce.Do(func() {
		c.addresses = c.walk()
	})
	return c.addresses
}

func (c *Catalog) walk() []Address {
	var out []Address
	for _, pc := range sortedKeys(c.Provinces) {
		pname := c.Provinces[pc]
		if pname == "" {
			continue
		}
		p := Province{Code: pc, Name: pname}

		for _, cc := range sortedKeys(c.Cities[pc]) {
			cname := c.Cities[pc][cc]
			if cname == "" {
				continue
			}
			city := City{Code: cc, Name: cname, ProvinceCode: pc}

			districts := c.Districts[cc]
			emitted := false
			for _, dc := range sortedKeys(districts) {
				dname := districts[dc]
				if dname == "" {
					continue
				}
				out = append(out, Address{
					Province: p,
					City:     city,
					District: District{Code: dc, Name: dname, CityCode: cc, ProvinceCode: pc},
				})
				emitted = true
			}
			if !emitted {
				out = append(out, Address{Province: p, City: city})
			}
		}
	}
	return out
}

// Counts returns the number of provinces, cities and districts that survive
// the tree walk.
func (c *Catalog) Counts() (provinces, cities, districts int) {
	seenP := make(map[string]struct{})
	seenC := make(map[string]struct{})
	for _, a := range c.Addresses() {
		seenP[a.Province.Code] = struct{}{}
		seenC[a.Province.Code+"/"+a.City.Code] = struct{}{}
		if a.HasDistrict() {
			districts++
		}
	}
	return len(seenP), len(seenC), districts
}

// Version returns a short content hash of the catalog. Two catalogs with the
// same entries have the same version regardless of how they were loaded.
func (c *Catalog) Version() string {
	c.versionOnce.Do(func() {
		h := sha256.New()
		for _, a := range c.Addresses() {
			for _, s := range []string{
				a.Province.Code, a.Province.Name,
				a.City.Code, a.City.Name,
				a.District.Code, a.District.Name,
			} {
				h.Write([]byte(s))
				h.Write([]byte{0})
			}
			h.Write([]byte{'\n'})
		}
		c.version = hex.EncodeToString(h.Sum(nil))[:16]
	})
	return c.version
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

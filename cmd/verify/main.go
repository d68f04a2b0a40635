// Command verify checks a reference catalog for consistency before it is
// deployed: it parses cleanly, names are unambiguous within each parent, and
// every leaf finds itself when the catalog is matched against its own rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/garyellow/region-matcher/internal/data"
	"github.com/garyellow/region-matcher/internal/matcher"
	"github.com/garyellow/region-matcher/internal/region"
)

var catalogFlag = flag.String("catalog", "", "Catalog file to verify (default: embedded catalog)")

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	flag.Parse()

	fmt.Println("🔍 Region Matcher - Catalog Consistency Verification Tool")
	fmt.Println("==========================================================")

	var src region.Source = region.EmbeddedSource{}
	if *catalogFlag != "" {
		src = region.FileSource{Path: *catalogFlag}
	}

	catalog, err := src.Load(context.Background())
	if err != nil {
		fmt.Printf("❌ Catalog failed to load: %v\n", err)
		os.Exit(1)
	}

	results := []verifyResult{}
	results = append(results, verifyParse(catalog, *catalogFlag == "")...)
	results = append(results, verifyUniqueNames(catalog)...)
	results = append(results, verifySelfMatch(catalog)...)

	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed (catalog version %s)\n", passedCount, failedCount, catalog.Version())

	if failedCount > 0 {
		os.Exit(1)
	}
}

// verifyParse checks nothing was dropped and, for the bundled catalog, that
// the leaf count matches data.CatalogLeaves.
func verifyParse(c *region.Catalog, embedded bool) []verifyResult {
	results := []verifyResult{}

	msg := "No entries dropped"
	if len(c.Dropped) > 0 {
		msg = fmt.Sprintf("Dropped %d entries: %v", len(c.Dropped), c.Dropped)
	}
	results = append(results, verifyResult{
		name:    "Catalog Parses Cleanly",
		passed:  len(c.Dropped) == 0,
		message: msg,
	})

	provinces, cities, districts := c.Counts()
	leaves := len(c.Addresses())
	results = append(results, verifyResult{
		name:    "Catalog Not Empty",
		passed:  leaves > 0,
		message: fmt.Sprintf("%d provinces, %d cities, %d districts, %d leaves", provinces, cities, districts, leaves),
	})

	if embedded {
		results = append(results, verifyResult{
			name:    "Bundled Leaf Count",
			passed:  leaves == data.CatalogLeaves,
			message: fmt.Sprintf("Expected %d, got %d", data.CatalogLeaves, leaves),
		})
	}

	return results
}

// verifyUniqueNames reports names shared by siblings; name matching cannot
// tell such siblings apart.
func verifyUniqueNames(c *region.Catalog) []verifyResult {
	var dups []string
	dups = append(dups, duplicateNames("province", c.Provinces)...)
	for _, pc := range sortedKeys(c.Cities) {
		dups = append(dups, duplicateNames("city under "+pc, c.Cities[pc])...)
	}
	for _, cc := range sortedKeys(c.Districts) {
		dups = append(dups, duplicateNames("district under "+cc, c.Districts[cc])...)
	}

	if len(dups) == 0 {
		return []verifyResult{{
			name:    "Sibling Names Unique",
			passed:  true,
			message: "No sibling shares a name",
		}}
	}
	return []verifyResult{{
		name:    "Sibling Names Unique",
		passed:  false,
		message: fmt.Sprintf("Duplicates: %v", dups),
	}}
}

// duplicateNames lists "<scope> <name>" for every name used by more than one
// code in m.
func duplicateNames(scope string, m map[string]string) []string {
	seen := make(map[string]int, len(m))
	for _, name := range m {
		seen[name]++
	}
	var out []string
	for name, n := range seen {
		if n > 1 {
			out = append(out, fmt.Sprintf("%s %q (%d codes)", scope, name, n))
		}
	}
	slices.Sort(out)
	return out
}

// verifySelfMatch matches the catalog against its own leaves. Every leaf
// should pick the record built from itself with full confidence.
func verifySelfMatch(c *region.Catalog) []verifyResult {
	addrs := c.Addresses()
	records := make([]matcher.InputRecord, len(addrs))
	for i, a := range addrs {
		records[i] = matcher.InputRecord{
			ProvinceName: a.Province.Name,
			ProvinceCode: a.Province.Code,
			CityName:     a.City.Name,
			CityCode:     a.City.Code,
			DistrictName: a.District.Name,
			DistrictCode: a.District.Code,
		}
	}

	m, err := matcher.New(c)
	if err != nil {
		return []verifyResult{{name: "Self Match", passed: false, message: err.Error()}}
	}
	rows, err := m.BatchMatch(context.Background(), records)
	if err != nil {
		return []verifyResult{{name: "Self Match", passed: false, message: err.Error()}}
	}

	var misses []string
	for _, row := range rows {
		if row.Confidence != matcher.ConfidenceHigh {
			misses = append(misses, fmt.Sprintf("%s/%s/%s", row.ProvinceName, row.CityName, row.DistrictName))
		}
	}

	if len(misses) == 0 {
		return []verifyResult{{
			name:    "Self Match",
			passed:  true,
			message: fmt.Sprintf("All %d leaves matched themselves with high confidence", len(rows)),
		}}
	}
	return []verifyResult{{
		name:    "Self Match",
		passed:  false,
		message: fmt.Sprintf("%d leaves below high confidence: %v", len(misses), misses),
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

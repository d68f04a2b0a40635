// Package data bundles the reference catalog shipped with the binary.
// It is a small sample of the national hierarchy, used when no external
// catalog is configured and as the fixture for tests.
package data

import _ "embed"

// Catalog is the bundled catalog document in the format region.ParseCatalog reads.
//
//go:embed catalog.json
var Catalog []byte

// CatalogLeaves is the number of leaf addresses in the bundled catalog.
const CatalogLeaves = 31

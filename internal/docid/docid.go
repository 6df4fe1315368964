// Package docid derives document identifiers from upload filenames.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the number of hex characters kept from the digest.
const Length = 10

// Generate returns the first Length hex characters of SHA-256(filename).
// The id depends only on the name, so re-uploading a file under the same
// name replaces the earlier version.
func Generate(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:])[:Length]
}

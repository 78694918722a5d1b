/*
hash.go - Content hash chain and index hashes

PURPOSE:
  Two hashing concerns live here:

  1. ContentHash links history entries into a verifiable chain: version n
     stores the content hash of version n-1 in PreviousInvoiceHash. The
     hash covers the canonical JSON encoding of the full record, including
     its own PreviousInvoiceHash, so tampering with any historical version
     breaks every later link.

  2. EmailHash / MobileHash derive the fixed-width secondary-index keys
     from vendor contact fields. They are deterministic and normalized, so
     the same address always lands on the same index bucket. They are
     lookup keys only, never identity.

INVARIANT:
  All three functions are pure. Given equal input they return equal
  64-char lowercase hex strings forever; stored chains depend on it.
*/
package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ContentHash returns the sha256 of the invoice's canonical JSON encoding.
// encoding/json emits struct fields in declaration order, which makes the
// encoding canonical for our purposes.
func ContentHash(inv Invoice) string {
	b, err := json.Marshal(inv)
	if err != nil {
		// Invoice contains only marshalable field types; this cannot
		// happen for a well-formed record.
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EmailHash derives the vendor email index key. Case and surrounding
// whitespace are insignificant in addresses, so they are normalized away.
func EmailHash(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// MobileHash derives the vendor mobile index key. Formatting characters
// are stripped so "+44 20 7946 0958" and "+442079460958" collide.
func MobileHash(mobile string) string {
	var b strings.Builder
	for _, r := range mobile {
		switch r {
		case ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainArchive prefixes archive content hashes.
// The version suffix leaves room for algorithm migration.
const DomainArchive = "kimconv/archive/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes a JSON-native document (typically a decoded archive).
func ContentHash(doc any) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArchive, canonical), nil
}

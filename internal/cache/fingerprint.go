package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Fingerprint derives a stable cache key from the artifact kind, its owner
// and a hash of its input. Identical inputs always map to the same key.
func Fingerprint(kind, owner, inputHash string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(owner))
	h.Write([]byte{0})
	h.Write([]byte(inputHash))
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// HashInput hashes the canonical JSON encoding of v. Map keys are encoded
// in sorted order, so equal values hash equally.
func HashInput(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "hash input")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

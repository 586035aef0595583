package confighash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the 64-char hex SHA-256 digest of the canonical JSON encoding
// of v. encoding/json sorts map keys, so logically equal values always encode
// to the same bytes; element order inside arrays is preserved and significant.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical encode: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// HashProfile hashes a single profile's section heights. A nil profile hashes
// the same as an empty one.
func HashProfile(sections []int) (string, error) {
	if sections == nil {
		sections = []int{}
	}
	return Hash(sections)
}

// ProfileHashes returns the per-profile hash keyed by 1-based profile id.
func ProfileHashes(cfg [][]int) (map[int]string, error) {
	out := make(map[int]string, len(cfg))
	for i, profile := range cfg {
		h, err := HashProfile(profile)
		if err != nil {
			return nil, err
		}
		out[i+1] = h
	}
	return out, nil
}

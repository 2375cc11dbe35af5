// Package identity implements canonical-JSON content hashing, grounded on
// the original implementation's scripts/identifier_system.py
// (`canonical_hash`: json.dumps(obj, sort_keys=True,
// separators=(',',':'), ensure_ascii=False)` then sha256 hex digest) and
// bronze-copier's checksum convention of prefixing provenance checksums with
// "sha256:" while leaving bare content identifiers unprefixed.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize serializes v into its canonical JSON form: object keys sorted
// lexicographically at every nesting level, no insignificant whitespace,
// UTF-8. Go's encoding/json already sorts map[string]any keys and omits
// whitespace with Marshal; canonicalize additionally re-encodes through a
// generic map so that struct field order (which Marshal does NOT sort) does
// not leak into the hash, matching the original implementation's guarantee
// that identical logical content hashes identically regardless of the
// producing language's field ordering.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("identity: unmarshal for canonicalization: %w", err)
	}
	var buf []byte
	buf, err = appendCanonical(buf, generic)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendCanonical(buf []byte, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, item)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
}

// Hash returns the lowercase hex SHA-256 digest of v's canonical JSON form.
// This is the bare content identifier used for datasets and matches; it
// carries no "sha256:" prefix (see ChecksumPrefixed for the provenance
// convention).
func Hash(v interface{}) (string, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// ChecksumBytes returns the "sha256:"-prefixed digest of raw file bytes, the
// convention provenance entities use to distinguish a file checksum from a
// bare canonical-JSON content identifier.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// NormalizeRiotID applies NFC normalization to a Riot ID's game name
// component so that visually identical names sharing different Unicode
// representations canonicalize to the same identifier.
func NormalizeRiotID(gameName string) string {
	return norm.NFC.String(gameName)
}

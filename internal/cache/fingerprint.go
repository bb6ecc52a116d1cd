package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint computes a canonical fingerprint over (method, params) so that
// two semantically equal parameter payloads — same named values, same array
// contents — always produce the same key, regardless of map key order as
// produced by encoding/json (which does not guarantee order on decode).
func Fingerprint(method string, positional []any, named map[string]any) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	writeCanonical(h, canonicalValue(positional, named))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalValue(positional []any, named map[string]any) any {
	if named != nil {
		return named
	}
	if positional != nil {
		return positional
	}
	return []any{}
}

// writeCanonical serializes v with map keys sorted, so two maps with the
// same entries in different iteration orders hash identically.
func writeCanonical(h interface{ Write([]byte) (int, error) }, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		h.Write([]byte{'{'})
		for _, k := range keys {
			writeJSONString(h, k)
			h.Write([]byte{':'})
			writeCanonical(h, t[k])
			h.Write([]byte{','})
		}
		h.Write([]byte{'}'})
	case []any:
		h.Write([]byte{'['})
		for _, e := range t {
			writeCanonical(h, e)
			h.Write([]byte{','})
		}
		h.Write([]byte{']'})
	default:
		b, _ := json.Marshal(t)
		h.Write(b)
	}
}

func writeJSONString(h interface{ Write([]byte) (int, error) }, s string) {
	b, _ := json.Marshal(s)
	h.Write(b)
}

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Fingerprint returns a canonical content hash of an entity snapshot: 64
// lowercase hex characters of SHA-256 over a serialization with top-level
// keys in lexicographic order. Only top-level keys are canonicalized; nested
// objects hash by their default serialization, so two structurally equal
// entities whose nested maps serialize in different key orders hash
// differently. Downstream behavior depends on this, so it stays as is.
func Fingerprint(entity map[string]any) string {
	keys := make([]string, 0, len(entity))
	for k := range entity {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.Write(marshalValue(entity[k]))
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func marshalValue(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

// Package cache is a content-addressed store for derived artifacts.
//
// Values are addressed by a hash of the material that produced them, so a
// pipeline re-run over unchanged inputs finds its previous results instead
// of recomputing them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// input is the shape hashed to produce a key.
type input struct {
	Kind     string `json:"kind"`
	Material any    `json:"material"`
}

// Key computes the content-addressed key for material of a given kind.
// The kind keeps unrelated artifacts derived from identical material apart,
// e.g. embeddings of the same text under different models.
func Key(kind string, material any) string {
	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(&input{Kind: kind, Material: material})
	if err != nil {
		panic("failed to marshal key input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

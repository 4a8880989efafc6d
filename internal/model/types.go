package model

import "time"

// Fingerprint is a fixed-size image signature. Exactly one representation is
// populated, depending on the strategy that produced it: Vector for dense
// embeddings, Hash for perceptual hashes. Hash is a pointer because zero is
// a legitimate hash value (a uniform dark image hashes to 0); only a nil
// pointer means "no hash".
type Fingerprint struct {
	Vector []float32 `json:"vector,omitempty"`
	Hash   *uint64   `json:"hash,omitempty"`
}

// HashFingerprint wraps a perceptual hash value.
func HashFingerprint(h uint64) Fingerprint {
	return Fingerprint{Hash: &h}
}

type CatalogEntry struct {
	Label string `json:"label"`
	Fingerprint
	AddedAt time.Time `json:"added_at"`
}

type CatalogIndex struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Strategy  string         `json:"strategy"`
	Items     []CatalogEntry `json:"items"`
}

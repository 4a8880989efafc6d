package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"math/bits"

	"github.com/vitali-fedulov/imagehash2"
	"github.com/vitali-fedulov/images4"

	"critterlens/internal/model"
)

const (
	// imagehash2 parameters for the central hash
	hashNumBuckets = 4
	hashEpsilon    = 0.25
)

// PHash is the perceptual-hash strategy: images are reduced to an images4
// icon, hashed to a single uint64, and compared by Hamming distance.
// Robust to recompression and small resizes.
type PHash struct {
	maxDistance int
}

func NewPHash(maxDistance int) *PHash {
	return &PHash{maxDistance: maxDistance}
}

func (p *PHash) Name() string { return "phash" }

func (p *PHash) Extract(img image.Image) (model.Fingerprint, error) {
	icon := images4.Icon(img)
	hash := imagehash2.CentralHash9(icon, hashEpsilon, hashNumBuckets)
	return model.HashFingerprint(hash), nil
}

// Score returns the Hamming distance between the two hashes. Lower is better.
func (p *PHash) Score(query, candidate model.Fingerprint) (float64, error) {
	if query.Hash == nil || candidate.Hash == nil {
		return 0, errors.New("phash: fingerprint has no hash")
	}
	return float64(bits.OnesCount64(*query.Hash ^ *candidate.Hash)), nil
}

func (p *PHash) Better(a, b float64) bool { return a < b }

func (p *PHash) Accepts(score float64) bool { return score <= float64(p.maxDistance) }

func (p *PHash) Describe(score float64) string {
	return fmt.Sprintf("hash distance %.0f", score)
}

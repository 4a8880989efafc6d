// Package fingerprint turns decoded images into fixed-size signatures and
// scores them against each other. Two strategies exist: a perceptual hash
// compared by Hamming distance and a dense TFLite embedding compared by
// cosine similarity. Both hide behind Strategy so the rest of the program
// never cares which one is active.
package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"critterlens/internal"
	"critterlens/internal/model"
)

var ErrDecode = errors.New("not a decodable image")

type Strategy interface {
	// Name identifies the strategy in the catalog file and logs.
	Name() string

	// Extract computes the fingerprint of a decoded image. Same image in,
	// same fingerprint out.
	Extract(img image.Image) (model.Fingerprint, error)

	// Score compares a query fingerprint against a candidate. Whether a
	// bigger or smaller score is better depends on the strategy; use Better.
	Score(query, candidate model.Fingerprint) (float64, error)

	// Better reports whether score a beats score b.
	Better(a, b float64) bool

	// Accepts reports whether the score clears the match threshold.
	Accepts(score float64) bool

	// Describe renders the score for a chat reply.
	Describe(score float64) string
}

// Decode parses raw image bytes into an image.Image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// ForConfig builds the strategy the configuration selects.
func ForConfig(cfg internal.Config) (Strategy, error) {
	switch cfg.Strategy {
	case internal.StrategyEmbed:
		return NewEmbed(cfg.ModelPath, cfg.EmbedThreshold)
	case internal.StrategyPHash:
		return NewPHash(cfg.MaxHashDistance), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}

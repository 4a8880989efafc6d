// compare fingerprints two image files with a chosen strategy and prints
// the score and the match verdict. Handy for tuning thresholds.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"critterlens/internal"
	"critterlens/internal/fingerprint"
	"critterlens/internal/model"
)

func main() {
	image1Path := flag.String("img1", "", "Path to first image")
	image2Path := flag.String("img2", "", "Path to second image")
	strategy := flag.String("strategy", internal.StrategyPHash, "Fingerprint strategy: phash or embed")
	modelPath := flag.String("model", "", "TFLite model path (embed strategy)")
	threshold := flag.Float64("threshold", 0.85, "Minimum cosine similarity (embed strategy)")
	maxDistance := flag.Int("maxdist", 10, "Maximum Hamming distance (phash strategy)")
	flag.Parse()

	if *image1Path == "" || *image2Path == "" {
		log.Fatal("Usage: compare -img1 <path1> -img2 <path2> [-strategy phash|embed]")
	}

	var (
		strat fingerprint.Strategy
		err   error
	)
	switch *strategy {
	case internal.StrategyPHash:
		strat = fingerprint.NewPHash(*maxDistance)
	case internal.StrategyEmbed:
		strat, err = fingerprint.NewEmbed(*modelPath, *threshold)
		if err != nil {
			log.Fatalf("strategy: %v", err)
		}
	default:
		log.Fatalf("unknown strategy %q", *strategy)
	}

	fp1 := mustFingerprint(strat, *image1Path)
	fp2 := mustFingerprint(strat, *image2Path)

	score, err := strat.Score(fp1, fp2)
	if err != nil {
		log.Fatalf("score: %v", err)
	}

	fmt.Printf("strategy: %s\n", strat.Name())
	fmt.Printf("score:    %s\n", strat.Describe(score))
	if strat.Accepts(score) {
		fmt.Println("verdict:  ✓ MATCH")
	} else {
		fmt.Println("verdict:  ✗ no match")
	}
}

func mustFingerprint(strat fingerprint.Strategy, path string) model.Fingerprint {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	img, err := fingerprint.Decode(data)
	if err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}
	fp, err := strat.Extract(img)
	if err != nil {
		log.Fatalf("fingerprint %s: %v", path, err)
	}
	return fp
}

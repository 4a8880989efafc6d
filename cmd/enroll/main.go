// enroll bulk-loads a directory of reference images into a catalog file.
// Each image is stored under its file name ("mr._mime.png" becomes the
// label "mr._mime"), fingerprinted with the selected strategy.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"critterlens/internal"
	"critterlens/internal/fingerprint"
	"critterlens/internal/model"
	"critterlens/internal/namex"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

func main() {
	dir := flag.String("dir", "", "Directory of reference images (<label>.<ext>)")
	out := flag.String("out", "catalog.json", "Catalog file to write")
	strategy := flag.String("strategy", internal.StrategyPHash, "Fingerprint strategy: phash or embed")
	modelPath := flag.String("model", "", "TFLite model path (embed strategy)")
	flag.Parse()

	if *dir == "" {
		log.Fatal("Usage: enroll -dir <images> [-out catalog.json] [-strategy phash|embed]")
	}

	var (
		strat fingerprint.Strategy
		err   error
	)
	switch *strategy {
	case internal.StrategyPHash:
		strat = fingerprint.NewPHash(10)
	case internal.StrategyEmbed:
		strat, err = fingerprint.NewEmbed(*modelPath, 0.85)
		if err != nil {
			log.Fatalf("strategy: %v", err)
		}
	default:
		log.Fatalf("unknown strategy %q", *strategy)
	}

	index, err := buildIndex(*dir, strat)
	if err != nil {
		log.Fatal(err)
	}

	b, err := json.MarshalIndent(&index, "", "  ")
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("wrote %s (%d entries, strategy=%s)\n", *out, len(index.Items), strat.Name())
}

// buildIndex fingerprints every image file in dir. Files that share a label
// ("abra.png" and "abra.jpg") collapse to one entry, the later file winning,
// same as re-assigning a name in the bot.
func buildIndex(dir string, strat fingerprint.Strategy) (model.CatalogIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.CatalogIndex{}, fmt.Errorf("read dir: %w", err)
	}

	index := model.CatalogIndex{Strategy: strat.Name()}
	byLabel := make(map[string]int)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExts[ext] {
			continue
		}
		label := namex.StorageName(strings.TrimSuffix(e.Name(), ext))
		if label == "" {
			log.Printf("skip %s: empty label", e.Name())
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return model.CatalogIndex{}, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		img, err := fingerprint.Decode(data)
		if err != nil {
			log.Printf("skip %s: %v", e.Name(), err)
			continue
		}
		fp, err := strat.Extract(img)
		if err != nil {
			return model.CatalogIndex{}, fmt.Errorf("fingerprint %s: %w", e.Name(), err)
		}

		entry := model.CatalogEntry{
			Label:       label,
			Fingerprint: fp,
			AddedAt:     time.Now(),
		}
		if i, ok := byLabel[label]; ok {
			log.Printf("replacing %s: duplicate label from %s", label, e.Name())
			index.Items[i] = entry
			continue
		}
		byLabel[label] = len(index.Items)
		index.Items = append(index.Items, entry)
		fmt.Printf("enrolled %s\n", label)
	}

	if len(index.Items) == 0 {
		return model.CatalogIndex{}, errors.New("no images enrolled")
	}

	sort.Slice(index.Items, func(i, j int) bool {
		return index.Items[i].Label < index.Items[j].Label
	})
	index.UpdatedAt = time.Now()
	return index, nil
}

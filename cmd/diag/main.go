// Command diag loads one group from the disk cache (or the catalog) and
// prints the passes of its first few objects over a ground station.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/geometry"
	"github.com/star/orbtrack/internal/passes"
	"github.com/star/orbtrack/internal/propagation"
	"github.com/star/orbtrack/internal/transform"
)

func main() {
	var (
		label    = flag.String("label", "ISS", "group label (cache key)")
		id       = flag.String("id", "1998-067A", "international designator")
		group    = flag.String("group", "", "catalog collection name (instead of -id)")
		cacheDir = flag.String("cache-dir", catalog.DefaultCacheDir(), "cache directory")
		lat      = flag.Float64("lat", 39.7392, "station latitude (deg)")
		lon      = flag.Float64("lon", -104.9903, "station longitude (deg)")
		alt      = flag.Float64("alt", 1.609, "station altitude (km)")
		hours    = flag.Float64("hours", 72, "prediction horizon (hours)")
		minEl    = flag.Float64("min-elevation", 1, "minimum elevation (deg)")
		limit    = flag.Int("limit", 5, "number of objects to predict")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	g := catalog.Group{Label: *label, Identifier: catalog.Designator(*id)}
	if *group != "" {
		g.Identifier = catalog.Collection(*group)
	}

	loader := catalog.NewLoader(
		catalog.NewCache(*cacheDir, 2*time.Hour),
		catalog.NewFetcher(logger),
		logger,
		catalog.WithStaleFallback(true),
	)
	sets, err := loader.Load(context.Background(), g)
	if err != nil {
		fmt.Println("ERROR loading group:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d element sets for %s\n", len(sets), g.Label)

	objects, rejected := propagation.NewObjects(sets, nil, logger)
	if rejected > 0 {
		fmt.Printf("Rejected %d element sets\n", rejected)
	}
	if len(objects) > *limit {
		objects = objects[:*limit]
	}

	station, err := geometry.NewGroundStation("diag", transform.Geodetic{Lat: *lat, Lon: *lon, Alt: *alt})
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	fmt.Printf("Prediction start: %v\n", now)

	results := passes.Predict(context.Background(), passes.Request{
		Station:      station,
		Objects:      objects,
		Start:        now,
		Horizon:      time.Duration(*hours * float64(time.Hour)),
		MinElevation: *minEl,
		MaxPasses:    10,
	})

	totalPasses := 0
	for _, res := range results {
		if res.Error != "" {
			fmt.Printf("  NORAD %d: ERROR %s\n", res.CatalogNumber, res.Error)
			continue
		}
		fmt.Printf("  NORAD %d %s: %d passes\n", res.CatalogNumber, res.Name, len(res.Passes))
		totalPasses += len(res.Passes)
		for j, p := range res.Passes {
			fmt.Printf("    pass %d: start=%v maxEl=%.1f° az=%.0f°→%.0f° dur=%.0fs\n",
				j, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.StartAzimuth, p.EndAzimuth, p.DurationSeconds)
		}
	}
	fmt.Printf("\nTotal passes found: %d\n", totalPasses)
}

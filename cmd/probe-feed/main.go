package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/unklstewy/skyfence/internal/gateway"
	"github.com/unklstewy/skyfence/pkg/config"
	"github.com/unklstewy/skyfence/pkg/geo"
	"github.com/unklstewy/skyfence/pkg/opensky"
)

// main probes the upstream flight feed at a chosen cadence. Use this to
// verify credentials and to find how fast the feed can be polled before
// it starts rejecting calls.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	interval := flag.Float64("interval", 10.0, "Delay between calls in seconds")
	calls := flag.Int("calls", 5, "Number of probe calls")
	flag.Parse()

	log.Println("=========================================")
	log.Println("  Skyfence Feed Probe")
	log.Println("=========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	region := cfg.Region.GeoRegion()
	log.Printf("Region center: %.4f, %.4f (radius %.0f mi)",
		region.Center.Lat, region.Center.Lon, region.RadiusMiles)
	log.Printf("Probe cadence: %.1fs, %d calls", *interval, *calls)
	log.Println()

	var source gateway.StatesSource
	if cfg.OpenSky.HasCredentials() {
		log.Printf("Probing: %s", cfg.OpenSky.APIURL)
		source = opensky.NewClient(opensky.Config{
			APIURL:       cfg.OpenSky.APIURL,
			TokenURL:     cfg.OpenSky.TokenURL,
			ClientID:     cfg.OpenSky.ClientID,
			ClientSecret: cfg.OpenSky.ClientSecret,
			Timeout:      time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		})
	} else {
		log.Println("No credentials configured, probing the synthetic feed")
		source = gateway.NewSyntheticSource(region.Center)
	}

	// A viewport roughly one degree around the region center keeps the
	// payloads small.
	bounds := &geo.Bounds{
		North: region.Center.Lat + 1.0,
		South: region.Center.Lat - 1.0,
		East:  region.Center.Lon + 1.0,
		West:  region.Center.Lon - 1.0,
	}

	ctx := context.Background()
	delay := time.Duration(*interval * float64(time.Second))
	failures := 0

	for i := 0; i < *calls; i++ {
		if i > 0 {
			time.Sleep(delay)
		}

		start := time.Now()
		states, err := source.FetchStates(ctx, bounds)
		elapsed := time.Since(start)

		switch {
		case opensky.IsAuthError(err):
			log.Fatalf("  Call %d/%d: authentication failed: %v", i+1, *calls, err)
		case err != nil:
			failures++
			log.Printf("  Call %d/%d: ✗ %v (%.0fms)", i+1, *calls, err, elapsed.Seconds()*1000)
		default:
			airborne := 0
			for _, sv := range states {
				if !sv.OnGround {
					airborne++
				}
			}
			log.Printf("  Call %d/%d: ✓ %d aircraft, %d airborne (%.0fms)",
				i+1, *calls, len(states), airborne, elapsed.Seconds()*1000)
		}
	}

	log.Println()
	log.Println("=========================================")
	if failures == 0 {
		log.Printf("All %d calls succeeded at %.1fs cadence", *calls, *interval)
		log.Printf("  \"steady_seconds\": %d is safe", int(*interval))
	} else {
		log.Printf("%d of %d calls failed, try a slower cadence", failures, *calls)
	}
	log.Println("=========================================")
}

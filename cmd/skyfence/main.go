// Skyfence flight alert gateway
// Serves the REST API + WebSocket stream over a geofenced flight feed
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unklstewy/skyfence/internal/gateway"
	"github.com/unklstewy/skyfence/internal/observability"
	"github.com/unklstewy/skyfence/pkg/config"
	"github.com/unklstewy/skyfence/pkg/opensky"
	"github.com/unklstewy/skyfence/pkg/ratelimit"
	"github.com/unklstewy/skyfence/pkg/records"
	"github.com/unklstewy/skyfence/pkg/region"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
)

// Server holds the HTTP server and its dependencies
type Server struct {
	router  *chi.Mux
	gw      *gateway.Gateway
	regions *region.Store
	gate    *ratelimit.Gate
	metrics *observability.Collector
	cfg     *config.Config
}

func main() {
	flag.Parse()

	log.Println("🚀 Starting Skyfence gateway...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	regions := region.NewStore(cfg.Region.GeoRegion())
	gate := ratelimit.NewGate(time.Duration(cfg.RateLimit.SteadySeconds) * time.Second)

	// Pick the flight source. Without credentials we run on simulated
	// traffic so the API stays usable in development.
	var source gateway.StatesSource
	synthetic := !cfg.OpenSky.HasCredentials()
	if synthetic {
		log.Println("⚠️  No upstream credentials configured, serving synthetic traffic")
		source = gateway.NewSyntheticSource(regions.Get().Center)
	} else {
		source = opensky.NewClient(opensky.Config{
			APIURL:       cfg.OpenSky.APIURL,
			TokenURL:     cfg.OpenSky.TokenURL,
			ClientID:     cfg.OpenSky.ClientID,
			ClientSecret: cfg.OpenSky.ClientSecret,
			Timeout:      time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		})
		log.Printf("📡 Upstream feed: %s", cfg.OpenSky.APIURL)
	}

	// Aircraft registry enrichment is optional; without a bucket flights
	// are served without registry records.
	var recordCache *records.Cache
	if cfg.Records.Bucket != "" {
		store, err := records.NewGCSStore(context.Background(), cfg.Records.Bucket)
		if err != nil {
			log.Fatalf("Failed to open records bucket %s: %v", cfg.Records.Bucket, err)
		}
		defer store.Close()
		recordCache = records.NewCache(store, cfg.Records.MaxEntries,
			time.Duration(cfg.Records.TTLMinutes)*time.Minute, metrics)
		log.Printf("🗂  Aircraft records from gs://%s", cfg.Records.Bucket)
	}

	gw := gateway.New(gateway.Options{
		Regions:   regions,
		Gate:      gate,
		Source:    source,
		Records:   recordCache,
		Metrics:   metrics,
		Synthetic: synthetic,
	})

	srv := &Server{
		router:  chi.NewRouter(),
		gw:      gw,
		regions: regions,
		gate:    gate,
		metrics: metrics,
		cfg:     cfg,
	}
	srv.setupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("📡 Server listening on http://%s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n👋 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped")
}

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/checkout"
	"github.com/redstick-goods/storefront/internal/commerce/square"
	"github.com/redstick-goods/storefront/internal/config"
	"github.com/redstick-goods/storefront/internal/httpx"
	"github.com/redstick-goods/storefront/internal/pkg/cache"
	"github.com/redstick-goods/storefront/internal/pkg/telemetry"
	"github.com/redstick-goods/storefront/internal/shipping"
	"github.com/redstick-goods/storefront/internal/shipping/nominatim"
	"github.com/redstick-goods/storefront/internal/store/sqlite"
)

const serviceName = "storefront"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	telemetry.InitLogger(serviceName)

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		log.Fatalf("setup tracer: %v", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	platform, err := square.New(square.Config{
		Environment: cfg.Environment,
		AccessToken: cfg.AccessToken,
		LocationID:  cfg.LocationID,
		TaxRate:     cfg.TaxRate,
	})
	if err != nil {
		log.Fatalf("commerce client: %v", err)
	}

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	engine := cart.NewEngine(platform, db, cart.Config{
		LocationID: cfg.LocationID,
		Currency:   cfg.Currency,
		TaxRate:    cfg.TaxRate,
	})
	if err := engine.Resume(ctx); err != nil {
		// A failed resume is survivable: the cart starts empty.
		log.Printf("resume cart: %v", err)
	}

	var distanceCache cache.Cache
	if cfg.RedisAddr != "" {
		distanceCache = cache.NewRedisCache(cfg.RedisAddr, serviceName)
	} else {
		distanceCache = cache.NewMemoryCache(serviceName)
	}

	estimator := shipping.NewEstimator(nominatim.New(cfg.GeocoderBaseURL), distanceCache)
	co := checkout.New(engine, platform, db, cfg.Currency)

	handler := httpx.NewHandler(engine, estimator, co, db)
	router := httpx.NewRouter(handler)

	log.Printf("storefront running on %s (env %s)", cfg.ListenAddr, cfg.Environment)
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

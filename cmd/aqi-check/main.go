// Command aqi-check performs a single fetch cycle against the AirVisual API
// and prints the normalized reading. Use it to verify an API key and station
// coordinates before enabling the collector.
//
// Usage:
//
//	aqi-check [-timeout 30s] [-endpoint URL] [API_KEY LAT LON]
//
// Without positional arguments the collector's configuration is used.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/aqi-collector/internal/airquality"
	"github.com/i474232898/aqi-collector/internal/airquality/providers"
	"github.com/i474232898/aqi-collector/internal/common"
	"github.com/i474232898/aqi-collector/internal/config"
	"github.com/i474232898/aqi-collector/internal/logging"
)

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	endpoint := flag.String("endpoint", "", "override the nearest_city endpoint")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	logger := logging.New(level)

	_ = godotenv.Load()

	cfg, err := resolveConfig(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}

	fmt.Printf("API key:     %s\n", common.MaskSecret(cfg.APIKey))
	fmt.Printf("Coordinates: %v, %v\n", cfg.Latitude, cfg.Longitude)
	fmt.Printf("Timestamp:   %s\n\n", time.Now().Format(time.RFC3339))

	provider := providers.NewAirVisualProvider(&http.Client{Timeout: *timeout}, providers.AirVisualConfig{
		APIKey:    cfg.APIKey,
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		BaseURL:   cfg.Endpoint,
		Timeout:   *timeout,
		UserAgent: "aqi-check/1.0.0",
		Logger:    logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reading, err := provider.Fetch(ctx)
	if err != nil {
		fmt.Printf("FAILED (%s/%s): %v\n", airquality.KindOf(err), airquality.ReasonOf(err), err)
		os.Exit(1)
	}

	if !reading.KnownPollutant() {
		fmt.Printf("warning: unknown pollutant code %q\n", reading.PollutantCode)
	}

	out, _ := json.MarshalIndent(reading, "", "  ")
	fmt.Printf("Reading:\n%s\n", out)
}

func resolveConfig(args []string) (*config.AppConfig, error) {
	switch len(args) {
	case 0:
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		// Checking makes no sense without key and coordinates, even if
		// collection is switched off.
		cfg.Enabled = true
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case 3:
		cfg := config.Defaults()
		cfg.APIKey = args[0]
		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", args[1], err)
		}
		lon, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", args[2], err)
		}
		cfg.Latitude, cfg.Longitude = lat, lon
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("expected API_KEY LAT LON or no arguments")
	}
}

// Command locdemo wires the full stack together against the simulated
// provider: manifest inspection, authorization prompting, one-shot and
// continuous requests, and demand-driven sensing start/stop.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/geofix/location-core/config"
	"github.com/geofix/location-core/logger"
	"github.com/geofix/location-core/services"
	"github.com/geofix/location-core/types"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() {
		if err := logger.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing logger: %v\n", err)
		}
	}()

	configPath := flag.String("config", "", "optional path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	// Missing manifest keys are a host misconfiguration; fail fast before
	// accepting any request.
	inspector, err := config.LoadManifest(cfg.ManifestPath)
	if err != nil {
		log.Fatalw("Failed to load application manifest", "error", err)
	}

	provider := services.NewSimulatedProvider(
		types.AuthorizationNotDetermined,
		types.AuthorizationWhenInUse,
	)
	coordinator := services.NewRequestCoordinator(cfg.Coordinator, provider, inspector)
	provider.Bind(coordinator)
	defer func() {
		if err := coordinator.Close(); err != nil {
			log.Warnw("Coordinator shutdown incomplete", "error", err)
		}
	}()

	handle := coordinator.SubscribeAuthorizationChanges(func(status types.AuthorizationStatus) {
		log.Infow("Authorization changed", "status", status)
	})
	defer coordinator.UnsubscribeAuthorizationChanges(handle)

	done := make(chan struct{})
	coordinator.RequestPosition(2*time.Second, func(result types.Result) {
		if result.Err != nil {
			log.Warnw("One-shot request failed", "error", result.Err)
		} else {
			log.Infow("One-shot fix",
				"latitude", result.Location.Latitude,
				"longitude", result.Location.Longitude,
				"accuracy", result.Location.Accuracy)
		}
		close(done)
	})

	sub := coordinator.SubscribePosition(0, func(result types.Result) {
		if result.Err == nil {
			log.Infow("Continuous fix",
				"latitude", result.Location.Latitude,
				"longitude", result.Location.Longitude)
		}
	})

	// Give the simulated prompt time to resolve, then feed some readings.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		provider.EmitLocations(types.Location{
			Latitude:  47.6062 + float64(i)*0.001,
			Longitude: -122.3321,
			Accuracy:  5,
			Timestamp: time.Now(),
		})
		time.Sleep(100 * time.Millisecond)
	}

	<-done
	coordinator.CompleteRequest(sub)

	if loc := coordinator.CurrentLocation(); loc != nil {
		log.Infow("Final position",
			"latitude", loc.Latitude,
			"longitude", loc.Longitude,
			"continuousSensing", provider.ContinuousActive())
	}
}

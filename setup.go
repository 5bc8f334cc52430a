package main

import (
	"log"
	"math/rand"
	"time"

	"factoryops/internal/config"
	"factoryops/internal/store"
)

func runSetup(cfg config.Config) {
	log.Printf("Generating %d days of production data...", cfg.SetupDays)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	snap := store.Generate(cfg.SetupDays, time.Now(), rng)

	if err := store.Save(snap, cfg.DataPath); err != nil {
		log.Fatalf("Failed to save store: %v", err)
	}

	log.Printf("Generated data from %s to %s", snap.StartDay(), snap.EndDay())
	log.Printf("%d days of data for %d machines", len(snap.Production), len(snap.Machines))
	log.Printf("Data saved to %s. Run 'chat' to start.", cfg.DataPath)
}

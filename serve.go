package main

import (
	"log"

	"factoryops/internal/config"
	"factoryops/internal/dashboard"
)

func runServe(cfg config.Config) {
	snap := mustLoadStore(cfg)
	srv := dashboard.NewServer(snap, cfg.FactoryName)
	if err := srv.ListenAndServe(cfg.DashboardAddr); err != nil {
		log.Fatalf("Dashboard server error: %v", err)
	}
}

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/svenstaro/site24x7-exporter/internal/auth"
	"github.com/svenstaro/site24x7-exporter/internal/config"
	"github.com/svenstaro/site24x7-exporter/internal/exporter"
	"github.com/svenstaro/site24x7-exporter/internal/geodata"
	"github.com/svenstaro/site24x7-exporter/internal/metrics"
	"github.com/svenstaro/site24x7-exporter/internal/site24x7"
)

func main() {
	cfg, err := config.Load(os.Getenv("SITE24X7_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.Printf("Using Site24x7 endpoint: %s", cfg.APIBaseURL())
	log.Printf("Using Zoho token endpoint: %s", cfg.TokenURL())
	if proxy := config.ProxyInfo(cfg.APIBaseURL()); proxy != "" {
		log.Printf("Picked up proxy: %s", proxy)
	} else {
		log.Printf("Not using any proxies")
	}

	tokens := auth.NewManager(cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken, cfg.TokenURL(), cfg.LogSecrets, nil)
	client := site24x7.NewClient(cfg.APIBaseURL(), nil)
	registry := metrics.NewRegistry()
	exp := exporter.New(tokens, client, registry)

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, exp)
	mux.HandleFunc(cfg.GeolocationPath, geodata.Handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "site24x7-exporter\n\nTry %s\n", cfg.MetricsPath)
	})

	log.Printf("Listening on %s", cfg.ListenAddress)
	srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("http serve: %v", err)
	}
}

// Package exporter runs the scrape pipeline: one inbound metrics request
// triggers one token-fetch-update cycle against the Site24x7 API, and the
// response is always the current snapshot, stale or not.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/svenstaro/site24x7-exporter/internal/auth"
	"github.com/svenstaro/site24x7-exporter/internal/metrics"
	"github.com/svenstaro/site24x7-exporter/internal/site24x7"
)

const scrapeTimeout = 50 * time.Second

// Exporter drives the scrape pipeline and serves the metrics endpoint.
// Overlapping scrape requests are coalesced into a single pipeline run; a
// request never observes a half-updated snapshot.
type Exporter struct {
	tokens   *auth.Manager
	client   *site24x7.Client
	registry *metrics.Registry

	handler http.Handler
	scrapes singleflight.Group

	scrapeErrors prometheus.Counter
	scrapeOK     prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

func New(tokens *auth.Manager, client *site24x7.Client, registry *metrics.Registry) *Exporter {
	e := &Exporter{
		tokens:   tokens,
		client:   client,
		registry: registry,
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "site24x7_scrape_errors_total",
			Help: "Scrapes that failed and served the previous snapshot instead",
		}),
		scrapeOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "site24x7_scrape_success",
			Help: "Whether the most recent scrape pipeline run succeeded (1=ok, 0=error)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "site24x7_last_scrape_success_timestamp_seconds",
			Help: "Last successful scrape pipeline run (epoch seconds)",
		}),
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(registry.Collectors()...)
	promRegistry.MustRegister(auth.MetricsCollectors()...)
	promRegistry.MustRegister(e.scrapeErrors, e.scrapeOK, e.lastSuccess)
	e.handler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	return e
}

// ServeHTTP runs the pipeline and renders the snapshot. A failed run serves
// the previous snapshot with the error series incremented rather than an
// empty body: consumers see stale-but-present data plus an explicit signal.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := e.Scrape(); err != nil {
		log.Printf("Scrape failed, serving previous snapshot: %v", err)
	}
	// A later coalesced run may be rewriting the registry while this request
	// renders; hold the snapshot steady for the duration.
	e.registry.Snapshot(func() {
		e.handler.ServeHTTP(w, r)
	})
}

// Scrape executes one pipeline run. Runs triggered by overlapping requests
// are coalesced: late arrivals wait for and share the in-flight result.
func (e *Exporter) Scrape() error {
	_, err, _ := e.scrapes.Do("scrape", func() (interface{}, error) {
		if err := e.run(); err != nil {
			e.scrapeErrors.Inc()
			e.scrapeOK.Set(0)
			return nil, err
		}
		e.scrapeOK.Set(1)
		e.lastSuccess.SetToCurrentTime()
		return nil, nil
	})
	return err
}

// run is one pass of the state machine: token, concurrent fetches, registry
// update. Requests carry their own deadline, detached from the inbound
// request context so a disconnecting collector cannot cancel a coalesced
// run for everyone else.
func (e *Exporter) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	token, err := e.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	monitors, groups, err := e.fetch(ctx, token)
	if errors.Is(err, site24x7.ErrAuth) {
		// The token was rejected mid-flight, likely expired between scrapes.
		// Force exactly one refresh and retry; a second rejection means the
		// credentials are broken and this scrape fails.
		log.Printf("Access token rejected by the API, refreshing and retrying")
		e.tokens.Invalidate()
		token, err = e.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("refresh token: %w", err)
		}
		monitors, groups, err = e.fetch(ctx, token)
	}
	if err != nil {
		return err
	}

	// Only a complete fetch may update the registry. Partial data would
	// corrupt group labels without matching monitor updates, or vice versa.
	e.registry.Update(monitors, groups)
	return nil
}

func (e *Exporter) fetch(ctx context.Context, token string) ([]site24x7.Monitor, []site24x7.MonitorGroup, error) {
	var (
		monitors []site24x7.Monitor
		groups   []site24x7.MonitorGroup
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		monitors, err = e.client.ListMonitors(ctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = e.client.ListMonitorGroups(ctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return monitors, groups, nil
}

// Package metrics maps Site24x7 monitor records onto the exported metric
// set. Metric names and label keys are a stable contract with downstream
// dashboards; changing them is a breaking change.
package metrics

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/svenstaro/site24x7-exporter/internal/site24x7"
)

var seriesLabels = []string{"monitor_type", "monitor_name", "monitor_id", "monitor_group"}

// Registry owns the exported monitor series and the per-monitor history
// needed to keep the last measured value alive across polls that return no
// usable data. All state is rebuilt from the upstream API on every
// successful update; nothing is persisted.
type Registry struct {
	status  *prometheus.GaugeVec
	latency *prometheus.GaugeVec

	mu sync.RWMutex
	// last exported latency in seconds, by monitor id
	lastValue map[string]float64
}

func NewRegistry() *Registry {
	return &Registry{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "site24x7_monitor_status",
			Help: "Current status of the monitor (0=Down, 1=Up, 2=Trouble, 3=Critical, 5=Suspended, 7=Maintenance, 9=Discovery, 10=ConfigurationError, -1=no usable data in the latest poll).",
		}, seriesLabels),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "site24x7_monitor_latency_seconds",
			Help: "Last measured performance value in seconds. +Inf means the monitor is down.",
		}, seriesLabels),
		lastValue: make(map[string]float64),
	}
}

// Collectors returns the monitor series for registration.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.status, r.latency}
}

// Snapshot runs fn while holding off updates. Update rebuilds the series in
// two steps (reset, then re-emit), so a render that is not serialized against
// it could observe the empty window in between; renders must go through here.
func (r *Registry) Snapshot(fn func()) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn()
}

// Update replaces the exported snapshot with the given point-in-time fetch.
// Monitors absent from the fetch lose all their series, including their
// remembered last value: an empty-but-successful fetch clears everything.
// Group membership and labels are recomputed fully; stale labels never
// survive an update.
func (r *Registry) Update(monitors []site24x7.Monitor, groups []site24x7.MonitorGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	groupNames := make(map[string][]string)
	for _, group := range groups {
		for _, id := range group.MonitorIDs {
			groupNames[id] = append(groupNames[id], group.Name)
		}
	}

	r.status.Reset()
	r.latency.Reset()

	current := make(map[string]bool, len(monitors))
	for _, monitor := range monitors {
		if monitor.ID == "" {
			continue
		}
		current[monitor.ID] = true

		names := groupNames[monitor.ID]
		sort.Strings(names)
		labels := prometheus.Labels{
			"monitor_type":  monitor.Type,
			"monitor_name":  monitor.Name,
			"monitor_id":    monitor.ID,
			"monitor_group": strings.Join(names, ","),
		}

		r.status.With(labels).Set(float64(monitor.Status))

		switch {
		case monitor.Status == site24x7.StatusDown:
			// An explicit down signal overrides any historical value so
			// dashboards can tell "down" from "slow".
			r.latency.With(labels).Set(math.Inf(1))
			r.lastValue[monitor.ID] = math.Inf(1)
		case monitor.AttributeValue != nil:
			// Upstream reports milliseconds.
			seconds := *monitor.AttributeValue / 1000
			r.latency.With(labels).Set(seconds)
			r.lastValue[monitor.ID] = seconds
		default:
			// No usable measurement this poll. Keep the last exported value
			// instead of overwriting history with a zero; only an explicit
			// down signal may push the value to infinity.
			if last, ok := r.lastValue[monitor.ID]; ok {
				r.latency.With(labels).Set(last)
			}
		}
	}

	for id := range r.lastValue {
		if !current[id] {
			delete(r.lastValue, id)
		}
	}
}

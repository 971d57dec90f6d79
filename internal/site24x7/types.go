package site24x7

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the Site24x7 monitor status enum. The numeric values are part of
// the exported metric contract and mirror what the API sends.
type Status int

const (
	// StatusUnknown is not an API value: it marks monitors whose latest
	// record carried no usable status (absent field, decode failure).
	StatusUnknown Status = -1

	StatusDown               Status = 0
	StatusUp                 Status = 1
	StatusTrouble            Status = 2
	StatusCritical           Status = 3
	StatusSuspended          Status = 5
	StatusMaintenance        Status = 7
	StatusDiscovery          Status = 9
	StatusConfigurationError Status = 10
)

func (s Status) String() string {
	switch s {
	case StatusDown:
		return "Down"
	case StatusUp:
		return "Up"
	case StatusTrouble:
		return "Trouble"
	case StatusCritical:
		return "Critical"
	case StatusSuspended:
		return "Suspended"
	case StatusMaintenance:
		return "Maintenance"
	case StatusDiscovery:
		return "Discovery"
	case StatusConfigurationError:
		return "ConfigurationError"
	default:
		return "Unknown"
	}
}

// Monitor types with a defined performance value. Anything else is carried
// as-is in the type label but never contributes a latency measurement.
const (
	TypeURL         = "URL"
	TypeHomepage    = "HOMEPAGE"
	TypeRealBrowser = "REALBROWSER"
	TypeUnknown     = "UNKNOWN"
)

func typeHasValue(monitorType string) bool {
	switch monitorType {
	case TypeURL, TypeHomepage, TypeRealBrowser:
		return true
	}
	return false
}

// Monitor is one watched target as reported by /current_status.
type Monitor struct {
	ID     string
	Name   string
	Type   string
	Status Status

	// AttributeValue is the latest performance measurement in milliseconds.
	// Nil when the monitor reported no usable measurement; the API sends "-"
	// for down monitors and omits the field for monitors that have not
	// polled recently, neither of which means zero.
	AttributeValue *float64

	AttributeName string
	Unit          string
	Tags          []Tag
	LastPolledAt  *time.Time
}

// Tag is a Site24x7 "key:value" tag. Tags without a colon have an empty
// value.
type Tag struct {
	Key   string
	Value string
}

func parseTag(raw string) Tag {
	key, value, _ := strings.Cut(raw, ":")
	return Tag{Key: key, Value: value}
}

// MonitorGroup is a named collection of monitor ids.
type MonitorGroup struct {
	ID         string
	Name       string
	MonitorIDs []string
}

// The API sends a slightly odd RFC3339 variant without a colon in the zone
// offset, e.g. 2021-01-06T18:53:07+0000.
const timeLayout = "2006-01-02T15:04:05-0700"

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// parseAttributeValue decodes the attribute_value field, which is either a
// number or the literal string "-" for "no measurement possible".
func parseAttributeValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	return nil
}

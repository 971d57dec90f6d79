package site24x7

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrAuth is returned when the API rejects the access token. The caller can
// refresh the token and retry; any other failure is a FetchError.
var ErrAuth = errors.New("access token rejected")

// Exact message the API uses for expired or invalid tokens. Some error
// responses come back with HTTP 200, so the status code alone is not enough.
const oauthInvalidMessage = "OAuth Access Token is invalid or has expired."

// FetchError is any failure to retrieve or decode an API response that is
// not an authorization rejection: network errors, timeouts, non-2xx
// statuses, malformed bodies. It is never silently treated as an empty
// result.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client talks to the Site24x7 REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given regional API base URL.
// httpClient may be nil, in which case a default client with a bounded
// timeout and environment proxy support is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Response envelope shared by all endpoints. Error responses replace data
// with error_code and a message.
type envelope struct {
	ErrorCode *int            `json:"error_code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	HasMore   bool            `json:"has_more"`
}

// ListMonitors fetches the current status of every monitor, flattening
// monitors nested inside monitor groups into one list. Monitors whose
// payload cannot be decoded are kept as status-only records when their id is
// recoverable, so the registry does not mistake a decode glitch for a
// deleted monitor.
func (c *Client) ListMonitors(ctx context.Context, token string) ([]Monitor, error) {
	var monitors []Monitor
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		env, err := c.get(ctx, "/current_status", token, pageQuery(page))
		if err != nil {
			return nil, err
		}

		var data struct {
			Monitors      []json.RawMessage `json:"monitors"`
			MonitorGroups []struct {
				Monitors []json.RawMessage `json:"monitors"`
			} `json:"monitor_groups"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return nil, &FetchError{Op: "decode /current_status", Err: err}
			}
		}

		raws := data.Monitors
		for _, group := range data.MonitorGroups {
			raws = append(raws, group.Monitors...)
		}

		for _, raw := range raws {
			monitor, err := decodeMonitor(raw)
			if err != nil {
				if monitor.ID == "" {
					log.Printf("Skipping undecodable monitor record: %v", err)
					continue
				}
				log.Printf("Monitor %s: undecodable fields, keeping status-only record: %v", monitor.ID, err)
			}
			if seen[monitor.ID] {
				continue
			}
			seen[monitor.ID] = true
			monitors = append(monitors, monitor)
		}

		if !env.HasMore {
			break
		}
	}

	return monitors, nil
}

// ListMonitorGroups fetches all monitor groups with their member monitor
// ids, following pagination.
func (c *Client) ListMonitorGroups(ctx context.Context, token string) ([]MonitorGroup, error) {
	var groups []MonitorGroup

	for page := 1; ; page++ {
		env, err := c.get(ctx, "/monitor_groups", token, pageQuery(page))
		if err != nil {
			return nil, err
		}

		var raw []struct {
			GroupID     string   `json:"group_id"`
			GroupName   string   `json:"group_name"`
			DisplayName string   `json:"display_name"`
			Monitors    []string `json:"monitors"`
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &raw); err != nil {
				return nil, &FetchError{Op: "decode /monitor_groups", Err: err}
			}
		}

		for _, g := range raw {
			name := g.GroupName
			if name == "" {
				name = g.DisplayName
			}
			groups = append(groups, MonitorGroup{
				ID:         g.GroupID,
				Name:       name,
				MonitorIDs: g.Monitors,
			})
		}

		if !env.HasMore {
			break
		}
	}

	return groups, nil
}

func (c *Client) get(ctx context.Context, path, token string, query url.Values) (*envelope, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Op: "build request " + path, Err: err}
	}
	req.Header.Set("Accept", "application/json; version=2.0")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "request " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: "read " + path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: http %d: %s", ErrAuth, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &FetchError{Op: "request " + path, Err: fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
		}
		return nil, &FetchError{Op: "decode " + path, Err: err}
	}

	if env.ErrorCode != nil {
		if env.Message == oauthInvalidMessage {
			return nil, fmt.Errorf("%w: %s", ErrAuth, env.Message)
		}
		return nil, &FetchError{Op: path, Err: fmt.Errorf("api error %d: %s", *env.ErrorCode, env.Message)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Op: "request " + path, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	return &env, nil
}

func pageQuery(page int) url.Values {
	if page <= 1 {
		return nil
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

type rawMonitor struct {
	MonitorType    string          `json:"monitor_type"`
	MonitorID      string          `json:"monitor_id"`
	Name           string          `json:"name"`
	Status         json.RawMessage `json:"status"`
	AttributeValue json.RawMessage `json:"attribute_value"`
	AttributeName  string          `json:"attributeName"`
	Unit           string          `json:"unit"`
	Tags           []string        `json:"tags"`
	LastPolledTime string          `json:"last_polled_time"`
}

// decodeMonitor decodes a single monitor record. On failure it still tries
// to salvage the monitor's identity; the returned Monitor then carries
// StatusUnknown and no value. The error is returned alongside for logging.
func decodeMonitor(raw json.RawMessage) (Monitor, error) {
	var rm rawMonitor
	if err := json.Unmarshal(raw, &rm); err != nil {
		var probe struct {
			MonitorID   string `json:"monitor_id"`
			Name        string `json:"name"`
			MonitorType string `json:"monitor_type"`
		}
		_ = json.Unmarshal(raw, &probe)
		return Monitor{
			ID:     probe.MonitorID,
			Name:   probe.Name,
			Type:   normalizeType(probe.MonitorType),
			Status: StatusUnknown,
		}, err
	}

	monitor := Monitor{
		ID:            rm.MonitorID,
		Name:          rm.Name,
		Type:          normalizeType(rm.MonitorType),
		Status:        parseStatus(rm.Status),
		AttributeName: rm.AttributeName,
		Unit:          rm.Unit,
		LastPolledAt:  parseTime(rm.LastPolledTime),
	}
	if typeHasValue(monitor.Type) {
		monitor.AttributeValue = parseAttributeValue(rm.AttributeValue)
	}
	for _, tag := range rm.Tags {
		monitor.Tags = append(monitor.Tags, parseTag(tag))
	}
	return monitor, nil
}

func normalizeType(monitorType string) string {
	if monitorType == "" {
		return TypeUnknown
	}
	return monitorType
}

// parseStatus tolerates missing or malformed status fields. The absence of
// a status must never be read as Down, so anything unusable maps to
// StatusUnknown.
func parseStatus(raw json.RawMessage) Status {
	if len(raw) == 0 {
		return StatusUnknown
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return StatusUnknown
	}
	return Status(n)
}

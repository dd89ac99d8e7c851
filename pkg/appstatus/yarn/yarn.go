// Package yarn implements appstatus.Provider against the YARN ResourceManager
// REST API.
package yarn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eodrift/jobtracker/pkg/appstatus"
	"github.com/eodrift/jobtracker/pkg/jobstatus"
)

const providerName = "yarn"

// RequestDecorator mutates an outgoing request before it is sent, e.g. to
// attach SPNEGO or token authentication. Credential handling itself lives in
// the decorator, not in this package.
type RequestDecorator func(*http.Request) error

// Config configures a YARN status provider.
type Config struct {
	// BaseURL is the root of the YARN ResourceManager REST API,
	// e.g. "https://rm.example.org:8090".
	BaseURL string

	// HTTPClient is the client used for requests. Defaults to a client with
	// a 30s timeout.
	HTTPClient *http.Client

	// Decorate, if set, is applied to every outgoing request.
	Decorate RequestDecorator

	// Logger receives diagnostics logging. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Validate checks the configuration for required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("yarn base URL is required")
	}
	return nil
}

// Provider implements appstatus.Provider for YARN.
type Provider struct {
	baseURL  string
	client   *http.Client
	decorate RequestDecorator
	log      *zap.Logger
}

var _ appstatus.Provider = (*Provider)(nil)

// New creates a YARN status provider with the given configuration.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		decorate: cfg.Decorate,
		log:      log,
	}, nil
}

// ApplicationURL returns the REST URL for the given application's status.
func (p *Provider) ApplicationURL(appID string) string {
	return fmt.Sprintf("%s/ws/v1/cluster/apps/%s", p.baseURL, appID)
}

// GetJobMetadata fetches and parses the application report for appID.
//
// HTTP 404 maps to appstatus.ErrAppNotFound. A response that is not a JSON
// object, or that misses required report fields, maps to
// appstatus.ParseError. Transport errors and other HTTP error statuses
// propagate unmodified.
func (p *Provider) GetJobMetadata(ctx context.Context, jobID, userID, appID string) (jobstatus.Snapshot, error) {
	url := p.ApplicationURL(appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jobstatus.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if p.decorate != nil {
		if err := p.decorate(req); err != nil {
			return jobstatus.Snapshot{}, fmt.Errorf("decorate request: %w", err)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return jobstatus.Snapshot{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return jobstatus.Snapshot{}, fmt.Errorf("yarn application %s: %w", appID, appstatus.ErrAppNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return jobstatus.Snapshot{}, fmt.Errorf("yarn application status request failed: %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jobstatus.Snapshot{}, err
	}

	return p.parseApplicationResponse(body)
}

// requiredReportKeys must all be present in the "app" report object.
var requiredReportKeys = []string{"state", "finalStatus", "startedTime", "finishedTime"}

// parseApplicationResponse parses the JSON body of an application status
// response into a canonical snapshot.
func (p *Provider) parseApplicationResponse(body []byte) (jobstatus.Snapshot, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return jobstatus.Snapshot{}, &appstatus.ParseError{
			Provider: providerName,
			Reason:   fmt.Sprintf("expecting a JSON object, body=%q", truncate(string(body), 200)),
			Err:      err,
		}
	}

	report, _ := data["app"].(map[string]any)
	var missing []string
	for _, key := range requiredReportKeys {
		if _, ok := report[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return jobstatus.Snapshot{}, &appstatus.ParseError{
			Provider: providerName,
			Reason:   fmt.Sprintf("report is missing required keys %v", missing),
		}
	}

	state, _ := report["state"].(string)
	finalStatus, _ := report["finalStatus"].(string)
	status := statusFromApplication(state, finalStatus)

	// Sometimes YARN cannot launch the container at all; diagnostics then
	// carries the reason.
	if status == jobstatus.StatusError {
		if diagnostics, _ := report["diagnostics"].(string); diagnostics != "" {
			p.log.Error("YARN application reports error diagnostics",
				zap.String("diagnostics", diagnostics))
		}
	}

	startTime, err := msEpochToRFC3339(report["startedTime"])
	if err != nil {
		return jobstatus.Snapshot{}, &appstatus.ParseError{Provider: providerName, Reason: "bad startedTime", Err: err}
	}
	finishTime, err := msEpochToRFC3339(report["finishedTime"])
	if err != nil {
		return jobstatus.Snapshot{}, &appstatus.ParseError{Provider: providerName, Reason: "bad finishedTime", Err: err}
	}

	usage := jobstatus.Usage{
		"memory": {Value: optionalNumber(report["memorySeconds"]), Unit: "mb-seconds"},
		"cpu":    {Value: optionalNumber(report["vcoreSeconds"]), Unit: "cpu-seconds"},
	}

	return jobstatus.Snapshot{
		Status:     status,
		StartTime:  startTime,
		FinishTime: finishTime,
		Usage:      usage,
	}, nil
}

// statusFromApplication maps a YARN (state, finalStatus) pair to the
// canonical status. On completed applications finalStatus overrides state:
// a FINISHED application with finalStatus FAILED or KILLED is an error, not
// a success.
func statusFromApplication(state, finalStatus string) jobstatus.Status {
	switch state {
	case "NEW", "NEW_SAVING", "SUBMITTED", "ACCEPTED":
		return jobstatus.StatusAccepted
	case "RUNNING":
		return jobstatus.StatusRunning
	case "KILLED":
		return jobstatus.StatusCanceled
	case "FINISHED", "FAILED":
		switch finalStatus {
		case "SUCCEEDED":
			return jobstatus.StatusFinished
		case "FAILED", "KILLED":
			return jobstatus.StatusError
		}
		return jobstatus.StatusUndefined
	}
	return jobstatus.StatusUndefined
}

// msEpochToRFC3339 converts a millisecond epoch timestamp from an application
// report to an RFC3339 UTC string. An epoch value of 0 means "not yet
// started/finished" and yields the empty string.
func msEpochToRFC3339(v any) (string, error) {
	ms, ok := v.(float64)
	if !ok {
		return "", fmt.Errorf("expecting numeric epoch millis, got %T", v)
	}
	if ms == 0 {
		return "", nil
	}
	return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339), nil
}

// optionalNumber extracts a numeric value that may be absent or null in the
// report. Null values pass through as nil rather than zero.
func optionalNumber(v any) *float64 {
	if f, ok := v.(float64); ok {
		return &f
	}
	return nil
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width] + "..."
}

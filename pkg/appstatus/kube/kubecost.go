package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eodrift/jobtracker/pkg/jobstatus"
)

// DefaultCostWindow is the trailing accumulation window for allocation
// queries. It must comfortably cover the longest-running jobs.
const DefaultCostWindow = "5d"

// KubecostConfig configures a KubecostClient.
type KubecostConfig struct {
	// BaseURL is the root of the kubecost-compatible allocation API.
	BaseURL string

	// Namespace scopes the allocation query. Defaults to DefaultNamespace.
	Namespace string

	// Window is the trailing accumulation window, e.g. "5d".
	// Defaults to DefaultCostWindow.
	Window string

	// HTTPClient is the client used for requests. Defaults to a client with
	// a 30s timeout.
	HTTPClient *http.Client
}

// KubecostClient queries a kubecost-style allocation API for accumulated
// per-job resource usage.
type KubecostClient struct {
	baseURL   string
	namespace string
	window    string
	client    *http.Client
}

// NewKubecostClient creates a cost-accounting client.
func NewKubecostClient(cfg KubecostConfig) (*KubecostClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("kubecost base URL is required")
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	window := cfg.Window
	if window == "" {
		window = DefaultCostWindow
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &KubecostClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		namespace: namespace,
		window:    window,
		client:    client,
	}, nil
}

type allocationResponse struct {
	Code int                             `json:"code"`
	Data []map[string]allocationEnvelope `json:"data"`
}

type allocationEnvelope struct {
	CPUCoreHours float64 `json:"cpuCoreHours"`
	RAMByteHours float64 `json:"ramByteHours"`
}

// Allocation returns the accumulated usage for all pods matching the given
// pod name filter (typically "<job name>*") over the configured window,
// converted to cpu-seconds / mb-seconds equivalents.
func (c *KubecostClient) Allocation(ctx context.Context, podFilter string) (jobstatus.Usage, error) {
	q := url.Values{}
	q.Set("aggregate", "namespace")
	q.Set("filterNamespaces", c.namespace)
	q.Set("filterPods", podFilter)
	q.Set("window", c.window)
	q.Set("accumulate", "true")

	reqURL := c.baseURL + "/model/allocation?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("allocation request failed: %s returned %s", reqURL, resp.Status)
	}

	var body allocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode allocation response: %w", err)
	}

	if body.Code != http.StatusOK || len(body.Data) == 0 {
		return nil, fmt.Errorf("unexpected allocation response: code=%d entries=%d", body.Code, len(body.Data))
	}
	cost, ok := body.Data[0][c.namespace]
	if !ok {
		return nil, fmt.Errorf("allocation response has no entry for namespace %q", c.namespace)
	}

	return jobstatus.Usage{
		"cpu":    jobstatus.MetricValue(cost.CPUCoreHours*3600, "cpu-seconds"),
		"memory": jobstatus.MetricValue(cost.RAMByteHours/(1024*1024)*3600, "mb-seconds"),
	}, nil
}

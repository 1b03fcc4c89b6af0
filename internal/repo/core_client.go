package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// MetricPoint is a single sample returned by mirador-core.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// CoreMetricsClient pulls historical metric samples from mirador-core so the
// engine can start with trend history instead of an empty store.
type CoreMetricsClient struct {
	baseURL     string
	metricsPath string
	httpClient  *http.Client
}

// NewCoreMetricsClient constructs a client targeting the configured mirador-core instance.
func NewCoreMetricsClient(baseURL, metricsPath string, timeout time.Duration) *CoreMetricsClient {
	return &CoreMetricsClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		metricsPath: metricsPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchMetricSeries queries mirador-core for samples of one metric in [start, end].
func (c *CoreMetricsClient) FetchMetricSeries(ctx context.Context, source, metric string, start, end time.Time) ([]MetricPoint, error) {
	if c == nil {
		return nil, fmt.Errorf("mirador-core client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("mirador-core base URL not configured")
	}

	payload := map[string]interface{}{
		"source": source,
		"metric": metric,
		"start":  start.Format(time.RFC3339),
		"end":    end.Format(time.RFC3339),
	}

	var response struct {
		Series []struct {
			Timestamp time.Time `json:"timestamp"`
			Value     float64   `json:"value"`
		} `json:"series"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.metricsPath), payload, &response); err != nil {
		return nil, fmt.Errorf("mirador-core metrics request for %s failed: %w", metric, err)
	}

	points := make([]MetricPoint, 0, len(response.Series))
	for _, sample := range response.Series {
		points = append(points, MetricPoint{Timestamp: sample.Timestamp, Value: sample.Value})
	}
	return points, nil
}

func (c *CoreMetricsClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *CoreMetricsClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirador-core returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hydroserve/hydroserve/internal/models"
)

// HTTPExtractor fetches a JSON array of records from an external endpoint.
// Settings:
//
//	url             endpoint (required)
//	timestamp_key   name of the record field holding the timestamp (required)
//	headers         map of request headers (optional)
//	start_param     query parameter to carry the load watermark, RFC 3339
//	                (optional; omitted means a full fetch every run)
//	timeout_seconds request timeout, default 60
//
// Every other numeric record field becomes a frame column named after the
// field. Non-numeric fields are ignored; records missing a field get NaN.
type HTTPExtractor struct {
	url          string
	timestampKey string
	headers      map[string]string
	startParam   string
	client       *http.Client
}

func init() {
	RegisterExtractor("http_json", func(settings map[string]interface{}) (Extractor, error) {
		return NewHTTPExtractor(settings)
	})
}

// NewHTTPExtractor validates settings and builds the extractor.
func NewHTTPExtractor(settings map[string]interface{}) (*HTTPExtractor, error) {
	rawURL, _ := settings["url"].(string)
	if rawURL == "" {
		return nil, &ConfigError{Message: "http_json extractor requires a url setting"}
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("http_json extractor url is invalid: %v", err)}
	}
	tsKey, _ := settings["timestamp_key"].(string)
	if tsKey == "" {
		return nil, &ConfigError{Message: "http_json extractor requires a timestamp_key setting"}
	}

	headers := make(map[string]string)
	if h, ok := settings["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	timeout := 60 * time.Second
	if v, ok := settings["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	startParam, _ := settings["start_param"].(string)

	return &HTTPExtractor{
		url:          rawURL,
		timestampKey: tsKey,
		headers:      headers,
		startParam:   startParam,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

// Extract fetches and parses the endpoint, retrying transient failures.
func (e *HTTPExtractor) Extract(ctx context.Context, task *models.Task, since time.Time) (*Frame, error) {
	body, err := retry.DoWithData(
		func() ([]byte, error) { return e.fetch(ctx, since) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", e.url, err)
	}
	return e.parse(body)
}

func (e *HTTPExtractor) fetch(ctx context.Context, since time.Time) ([]byte, error) {
	u, err := url.Parse(e.url)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if e.startParam != "" {
		q := u.Query()
		q.Set(e.startParam, since.UTC().Format(time.RFC3339))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(fmt.Errorf("unexpected status: %s", resp.Status))
	}
	return io.ReadAll(resp.Body)
}

// parse builds a frame from a JSON array of flat records. Column order
// follows first appearance across records.
func (e *HTTPExtractor) parse(body []byte) (*Frame, error) {
	var records []map[string]interface{}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	timestamps := make([]time.Time, 0, len(records))
	var fieldOrder []string
	seen := make(map[string]bool)
	rows := make([]map[string]float64, 0, len(records))

	for i, rec := range records {
		rawTS, ok := rec[e.timestampKey].(string)
		if !ok {
			return nil, fmt.Errorf("record %d has no %q timestamp field", i, e.timestampKey)
		}
		ts, err := parseTimestamp(rawTS)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		timestamps = append(timestamps, ts)

		row := make(map[string]float64)
		for k, v := range rec {
			if k == e.timestampKey {
				continue
			}
			f, ok := v.(float64)
			if !ok {
				continue
			}
			if !seen[k] {
				seen[k] = true
				fieldOrder = append(fieldOrder, k)
			}
			row[k] = f
		}
		rows = append(rows, row)
	}

	frame := NewFrame(timestamps)
	for _, field := range fieldOrder {
		vals := make([]float64, len(rows))
		for i, row := range rows {
			if v, ok := row[field]; ok {
				vals[i] = v
			} else {
				vals[i] = math.NaN()
			}
		}
		if err := frame.AddColumn(field, vals); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

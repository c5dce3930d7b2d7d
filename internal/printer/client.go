package printer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/services"
)

// Client fetches the current printer status.
type Client interface {
	Status(ctx context.Context) (Status, error)
}

// HTTPClient queries the Prusa Connect status API.
type HTTPClient struct {
	baseURL     string
	printerUUID string
	apiKey      string
	httpClient  *http.Client
}

// NewHTTPClient builds a status client from configuration.
func NewHTTPClient(cfg config.Printer) *HTTPClient {
	timeout := time.Duration(cfg.StatusTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		printerUUID: cfg.PrinterUUID,
		apiKey:      cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

type statusResponse struct {
	Job *struct {
		ID          int64    `json:"id"`
		State       string   `json:"state"`
		DisplayName string   `json:"display_name"`
		Progress    *float64 `json:"progress"`
	} `json:"job"`
	Printer *struct {
		State string `json:"state"`
	} `json:"printer"`
}

// Status performs one status query. Transport failures, timeouts, and
// non-200 responses are wrapped as transient; the Monitor converts them to
// StateUnreachable rather than surfacing them to the capture loop.
func (c *HTTPClient) Status(ctx context.Context) (Status, error) {
	url := fmt.Sprintf("%s/printers/%s/status", c.baseURL, c.printerUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, services.Wrap(services.ErrConfiguration, "printer", "status", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return Status{}, services.Wrap(marker, "printer", "status", "query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Status{}, services.Wrap(services.ErrTransient, "printer", "status",
			fmt.Sprintf("http %d: %s", resp.StatusCode, string(body)), nil)
	}

	var payload statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "printer", "status", "decode response", err)
	}

	return parseStatus(payload), nil
}

func parseStatus(payload statusResponse) Status {
	status := Status{State: StateIdle}

	if payload.Job != nil {
		status.RawState = payload.Job.State
		status.State = classifyState(payload.Job.State)
		status.JobID = payload.Job.ID
		status.JobName = payload.Job.DisplayName
		if payload.Job.Progress != nil {
			status.Progress = clampProgress(*payload.Job.Progress)
		}
	}

	// The printer-level state wins when present; the job block can lag
	// behind during state transitions.
	if payload.Printer != nil && payload.Printer.State != "" {
		status.RawState = payload.Printer.State
		status.State = classifyState(payload.Printer.State)
	}

	return status
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

var _ Client = (*HTTPClient)(nil)

// Package cams talks to the CAMS solar radiation time-series service.
// Retrievals are asynchronous: a request is submitted as a job, polled until
// it completes, and the result asset is downloaded to a local file.
package cams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wetsa/solrad/internal/httputil"
)

const DefaultBaseURL = "https://ads.atmosphere.copernicus.eu/api"

type Client struct {
	baseURL      string
	key          string
	client       *http.Client
	pollInterval time.Duration
}

func NewClient(baseURL, key string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		key:          key,
		client:       httputil.NewClient(),
		pollInterval: 2 * time.Second,
	}
}

// Request describes one time-series retrieval. Fields mirror the service's
// request schema.
type Request struct {
	SkyType       string   `json:"sky_type"`
	Location      Location `json:"location"`
	Altitude      string   `json:"altitude"`
	Date          string   `json:"date"`
	TimeStep      string   `json:"time_step"`
	TimeReference string   `json:"time_reference"`
	Format        string   `json:"format"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type jobStatus struct {
	JobID   string `json:"jobID"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type jobResults struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
		} `json:"value"`
	} `json:"asset"`
}

// Retrieve submits a retrieval for dataset, waits for the job to finish and
// writes the result to destPath.
func (c *Client) Retrieve(ctx context.Context, dataset string, req Request, destPath string) error {
	job, err := c.submit(ctx, dataset, req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	status, err := c.wait(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("wait for job %s: %w", job.JobID, err)
	}
	if status.Status != "successful" {
		return fmt.Errorf("job %s ended %s: %s", job.JobID, status.Status, status.Message)
	}

	href, err := c.resultHref(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("results for job %s: %w", job.JobID, err)
	}
	if err := c.download(ctx, href, destPath); err != nil {
		return fmt.Errorf("download job %s: %w", job.JobID, err)
	}
	return nil
}

func (c *Client) submit(ctx context.Context, dataset string, req Request) (*jobStatus, error) {
	payload, err := json.Marshal(map[string]any{"inputs": req})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.baseURL, dataset)

	body, err := c.doWithRetry(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	var job jobStatus
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("no job ID in response: %s", truncateBody(body))
	}
	return &job, nil
}

func (c *Client) wait(ctx context.Context, jobID string) (*jobStatus, error) {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.baseURL, jobID)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		body, err := c.doWithRetry(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		var status jobStatus
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("unmarshal status: %w", err)
		}
		switch status.Status {
		case "successful", "failed", "dismissed":
			return &status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) resultHref(ctx context.Context, jobID string) (string, error) {
	url := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.baseURL, jobID)
	body, err := c.doWithRetry(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	var results jobResults
	if err := json.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("unmarshal results: %w", err)
	}
	if results.Asset.Value.Href == "" {
		return "", fmt.Errorf("no asset href in results: %s", truncateBody(body))
	}
	return results.Asset.Value.Href, nil
}

func (c *Client) download(ctx context.Context, href, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("fetch asset: status %d: %s", resp.StatusCode, truncateBody(b))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return out.Close()
}

// doWithRetry performs one HTTP call, retrying with exponential backoff on
// rate limiting and retaining other failures as permanent.
func (c *Client) doWithRetry(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body []byte
	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.setHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, url, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("transient: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, truncateBody(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.key != "" {
		req.Header.Set("PRIVATE-TOKEN", c.key)
	}
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}

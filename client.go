package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Submitter is the submission collaborator: it hands a compiled
// JobDescription to the execution service and returns the job descriptor the
// service minted, or a typed error (TransportError, RateLimitError,
// RejectionError).
type Submitter interface {
	Submit(ctx context.Context, job *JobDescription) (*JobResult, error)
}

// serviceError is the error body the service returns for declined jobs.
type serviceError struct {
	Message string `json:"message"`
	RetryAt string `json:"retryAt,omitempty"`
}

// Client submits compiled jobs to the Relay service over HTTPS.
type Client struct {
	cfg  ClientConfig
	http *resty.Client
	l    *slog.Logger
}

// NewClient builds a Client from cfg. Defaults are applied and the config is
// validated; a bad config fails here, before any submission.
func NewClient(cfg ClientConfig, l *slog.Logger) (*Client, error) {
	if err := initConfig(&cfg); err != nil {
		return nil, err
	}
	if l == nil {
		l = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetDebug(cfg.Debug)

	return &Client{cfg: cfg, http: httpClient, l: l}, nil
}

// Submit implements Submitter. Jobs with no regions of their own pick up the
// client's default regions.
func (c *Client) Submit(ctx context.Context, job *JobDescription) (*JobResult, error) {
	if job == nil {
		return nil, &ConfigurationError{Field: "job", Reason: "job is nil"}
	}
	if len(job.Regions) == 0 && len(c.cfg.DefaultRegions) > 0 {
		withRegions := *job
		withRegions.Regions = append([]string(nil), c.cfg.DefaultRegions...)
		job = &withRegions
	}

	result := &JobResult{}
	svcErr := &serviceError{}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(job).
		SetResult(result).
		SetError(svcErr).
		Post(c.cfg.SubmitPath)
	if err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}

	switch {
	case resp.IsSuccess():
		c.l.InfoContext(ctx, "job submitted", "job_id", result.ID, "status", result.Status)
		return result, nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAt: retryAtFrom(resp, svcErr),
			Message: rejectionMessage(svcErr, resp),
		}
	default:
		return nil, &RejectionError{
			StatusCode: resp.StatusCode(),
			Message:    rejectionMessage(svcErr, resp),
		}
	}
}

// retryAtFrom extracts the retry-not-before hint from a 429 response. It
// prefers the body's retryAt timestamp and falls back to the Retry-After
// header, in either delay-seconds or HTTP-date form.
func retryAtFrom(resp *resty.Response, svcErr *serviceError) time.Time {
	if svcErr.RetryAt != "" {
		if at, err := time.Parse(time.RFC3339, svcErr.RetryAt); err == nil {
			return at
		}
	}
	header := resp.Header().Get("Retry-After")
	if header == "" {
		return time.Time{}
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Now().Add(time.Duration(seconds) * time.Second)
	}
	if at, err := http.ParseTime(header); err == nil {
		return at
	}
	return time.Time{}
}

func rejectionMessage(svcErr *serviceError, resp *resty.Response) string {
	if svcErr.Message != "" {
		return svcErr.Message
	}
	return fmt.Sprintf("service returned %s", resp.Status())
}

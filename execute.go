package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/relaykit/relay-go")

// OutcomeStatus classifies the terminal state of one execution.
type OutcomeStatus string

const (
	// OutcomeSuccess means the call completed with a successful response,
	// either locally or through a fallback branch.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailed means the call failed terminally on the caller's machine
	// and was not forwarded.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeForwarded means the job was handed to the service; Job carries
	// the descriptor it returned.
	OutcomeForwarded OutcomeStatus = "forwarded"
)

// Outcome is the result of executing a Step.
type Outcome struct {
	Status          OutcomeStatus
	ExecutedLocally bool
	StatusCode      int
	ResponseBody    string
	// Reason carries the transport-level failure description when the local
	// attempt never produced a status code.
	Reason string
	// Job is set only when Status is OutcomeForwarded.
	Job *JobResult
}

// Executor turns a Step tree into an Outcome. It walks the tree depth-first
// from a single logical caller; concurrent callers may share an Executor but
// must not share Steps.
type Executor struct {
	l         *slog.Logger
	http      *resty.Client
	submitter Submitter

	detached sync.WaitGroup
}

// ExecutorOption customizes a new Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient replaces the resty client used for local attempts.
func WithHTTPClient(c *resty.Client) ExecutorOption {
	return func(e *Executor) { e.http = c }
}

// NewExecutor builds an Executor that performs local attempts itself and
// hands compiled payloads to submitter when forwarding.
func NewExecutor(l *slog.Logger, submitter Submitter, opts ...ExecutorOption) *Executor {
	if l == nil {
		l = slog.Default()
	}
	e := &Executor{
		l:         l,
		http:      resty.New(),
		submitter: submitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the Step under its configured mode. A Step forwards to the
// service at most once per call; retry/reroute beyond that point is the
// service's job, requested through the compiled retry policy.
func (e *Executor) Execute(ctx context.Context, s *Step) (*Outcome, error) {
	if s == nil {
		return nil, &ConfigurationError{Field: "step", Reason: "step is nil"}
	}
	if s.url == "" {
		return nil, &ConfigurationError{Field: "url", Reason: "target URL is required"}
	}
	if e.submitter == nil {
		return nil, &ConfigurationError{Field: "submitter", Reason: "submission client is required"}
	}

	ctx, span := tracer.Start(ctx, "relay.execute", trace.WithAttributes(
		attribute.String("relay.mode", string(s.mode)),
		attribute.String("relay.url", s.url),
	))
	defer span.End()

	if s.mode == Performance {
		return e.forward(ctx, s)
	}
	return e.executeFrugal(ctx, s, false)
}

// Wait blocks until all detached continuations launched by this Executor have
// finished. Detached failures are logged and dropped; Wait exists so tests
// and shutdown paths can join them.
func (e *Executor) Wait() {
	e.detached.Wait()
}

// executeFrugal attempts the call locally and escalates per policy. When
// localOnly is set (the Step is a fallback branch inside a parent's local
// attempt) the branch never forwards remotely; exhausting its options simply
// reports failure so the parent can continue its own walk.
func (e *Executor) executeFrugal(ctx context.Context, s *Step, localOnly bool) (*Outcome, error) {
	res := e.attemptLocal(ctx, s)

	if res.success {
		if s.onSuccess != nil {
			e.launchDetached(s.onSuccess)
		}
		return &Outcome{
			Status:          OutcomeSuccess,
			ExecutedLocally: true,
			StatusCode:      res.statusCode,
			ResponseBody:    res.body,
		}, nil
	}

	// A response outside the forwardable set is a terminal local failure:
	// no fallbacks, no submission.
	if res.err == nil && !res.demoted && !s.isForwardable(res.statusCode) {
		e.l.InfoContext(ctx, "local attempt failed with non-forwardable status",
			"url", s.url, "status_code", res.statusCode)
		return res.failureOutcome(), nil
	}

	for i, br := range s.fallbacks {
		if !br.trigger.matches(res.statusCode, res.timedOut) {
			continue
		}
		if br.step.mode != Frugal {
			// A Performance branch has no local execution to offer; the
			// compiled payload still carries it for the service.
			e.l.InfoContext(ctx, "skipping performance-mode fallback branch",
				"url", s.url, "branch", i)
			continue
		}
		out, err := e.executeFrugal(ctx, br.step, true)
		if err != nil {
			return nil, err
		}
		if out.Status == OutcomeSuccess {
			e.l.InfoContext(ctx, "fallback branch succeeded locally",
				"url", s.url, "branch", i, "branch_url", br.step.url)
			return out, nil
		}
	}

	if localOnly {
		return res.failureOutcome(), nil
	}

	e.l.InfoContext(ctx, "local options exhausted, forwarding to service",
		"url", s.url, "status_code", res.statusCode, "timed_out", res.timedOut)

	out, err := e.forward(ctx, s)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			// The service is unreachable; there is no remote job to lean on,
			// so surface the local failure as the structured result.
			e.l.ErrorContext(ctx, "submission transport failure, returning local result",
				"url", s.url, "error", err)
			return res.failureOutcome(), nil
		}
		return nil, err
	}
	return out, nil
}

// forward compiles the full Step tree and submits it.
func (e *Executor) forward(ctx context.Context, s *Step) (*Outcome, error) {
	payload, err := s.Compile()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "relay.submit", trace.WithAttributes(
		attribute.String("relay.url", payload.URL),
		attribute.String("relay.method", payload.Method),
	))
	defer span.End()

	result, err := e.submitter.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	e.l.InfoContext(ctx, "job accepted by service",
		"url", s.url, "job_id", result.ID, "job_status", result.Status)
	return &Outcome{Status: OutcomeForwarded, Job: result}, nil
}

// localResult captures one local HTTP attempt.
type localResult struct {
	success    bool
	statusCode int
	body       string
	headers    map[string]string
	err        error
	timedOut   bool
	// demoted marks a 2xx response rejected by the step's success
	// expression; it qualifies for forwarding regardless of status code.
	demoted bool
}

func (r localResult) failureOutcome() *Outcome {
	out := &Outcome{
		Status:          OutcomeFailed,
		ExecutedLocally: true,
		StatusCode:      r.statusCode,
		ResponseBody:    r.body,
	}
	if r.err != nil {
		out.Reason = r.err.Error()
	}
	return out
}

func (e *Executor) attemptLocal(ctx context.Context, s *Step) localResult {
	ctx, span := tracer.Start(ctx, "relay.local_attempt", trace.WithAttributes(
		attribute.String("relay.url", s.url),
	))
	defer span.End()

	timeout := s.localTimeout
	if timeout <= 0 {
		timeout = DefaultLocalTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := e.http.R().SetContext(attemptCtx)
	if len(s.headers) > 0 {
		req.SetHeaders(s.headers)
	}
	if s.body != "" {
		req.SetBody(s.body)
	}

	resp, err := req.Execute(httpMethod(s.method), s.url)
	if err != nil {
		timedOut := isTimeout(err)
		e.l.InfoContext(ctx, "local attempt failed at transport level",
			"url", s.url, "timed_out", timedOut, "error", err)
		return localResult{err: &TransportError{Op: "local attempt", Err: err}, timedOut: timedOut}
	}

	res := localResult{
		statusCode: resp.StatusCode(),
		body:       resp.String(),
		headers:    flattenHeader(resp.Header()),
	}
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		res.success = true
		if s.successWhen != "" {
			ok, evalErr := e.evalSuccessWhen(ctx, s, res)
			if evalErr != nil || !ok {
				// A 2xx that fails its assertion is handled like a
				// forwardable failure.
				res.success = false
				res.demoted = true
			}
		}
	}
	return res
}

// evalSuccessWhen runs the Step's response assertion over the local response.
func (e *Executor) evalSuccessWhen(ctx context.Context, s *Step, res localResult) (bool, error) {
	env := map[string]any{
		"status_code": res.statusCode,
		"headers":     res.headers,
		"body":        res.body,
	}
	out, err := expr.Eval(s.successWhen, env)
	if err != nil {
		e.l.ErrorContext(ctx, "error evaluating success expression",
			"url", s.url, "expression", s.successWhen, "error", err)
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		err := fmt.Errorf("expression %s evaluated to %T, expected boolean", s.successWhen, out)
		e.l.ErrorContext(ctx, "invalid success expression result",
			"url", s.url, "error", err)
		return false, err
	}
	if !ok {
		e.l.InfoContext(ctx, "success expression rejected response",
			"url", s.url, "expression", s.successWhen, "status_code", res.statusCode)
	}
	return ok, nil
}

// launchDetached schedules a continuation without joining its outcome into
// the triggering call. Failures are logged and dropped; no cancellation from
// the parent propagates in, so the task gets a fresh context.
func (e *Executor) launchDetached(s *Step) {
	e.detached.Add(1)
	go func() {
		defer e.detached.Done()
		defer func() {
			if r := recover(); r != nil {
				e.l.Error("detached continuation panicked", "url", s.url, "panic", r)
			}
		}()
		if _, err := e.Execute(context.Background(), s); err != nil {
			e.l.Error("detached continuation failed", "url", s.url, "error", err)
		}
	}()
}

func httpMethod(m string) string {
	if m == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

package relay

import (
	"time"
)

// ExecutionMode selects how a Step reaches its target.
type ExecutionMode string

const (
	// Frugal attempts the call on the caller's machine first and forwards to
	// the service only on a qualifying failure.
	Frugal ExecutionMode = "frugal"
	// Performance always delegates the call to the service.
	Performance ExecutionMode = "performance"
)

// DedupStrategy selects how the idempotency key for a job is derived.
type DedupStrategy string

const (
	// DedupHash lets the service derive a deterministic key from
	// url+method+body+account. The client sends no key in this mode.
	DedupHash DedupStrategy = "hash"
	// DedupUnique mints a fresh random key on every compilation, so repeated
	// submissions of the same Step are never collapsed.
	DedupUnique DedupStrategy = "unique"
)

// Region policies and competition modes understood by the service.
const (
	RegionPolicyFallback = "fallback"
	RegionPolicyStrict   = "strict"

	CompetitionRace   = "race"
	CompetitionFanout = "fanout"
)

// DefaultLocalTimeout bounds a Frugal local attempt unless overridden.
const DefaultLocalTimeout = 30 * time.Second

// defaultForwardable is the set of status codes that qualify a local failure
// for fallback/remote handling.
var defaultForwardable = []int{429, 500, 502, 503, 504}

// TriggerKind tags the variants of a fallback trigger condition.
type TriggerKind string

const (
	TriggerAlways    TriggerKind = "always"
	TriggerOnError   TriggerKind = "on_error"
	TriggerOnTimeout TriggerKind = "on_timeout"
)

// Trigger gates when a fallback branch becomes eligible.
type Trigger struct {
	Kind        TriggerKind
	StatusCodes []int
	Timeout     time.Duration
}

// Always returns a trigger that matches any qualifying failure.
func Always() Trigger { return Trigger{Kind: TriggerAlways} }

// OnErrorCodes returns a trigger that matches when the primary attempt failed
// with one of the given status codes.
func OnErrorCodes(codes ...int) Trigger {
	return Trigger{Kind: TriggerOnError, StatusCodes: codes}
}

// OnTimeout returns a trigger that matches when the primary attempt timed out.
func OnTimeout(d time.Duration) Trigger {
	return Trigger{Kind: TriggerOnTimeout, Timeout: d}
}

// matches reports whether this trigger fires for a failure with the given
// status code (0 when none) and timeout flag.
func (t Trigger) matches(statusCode int, timedOut bool) bool {
	switch t.Kind {
	case TriggerOnError:
		for _, c := range t.StatusCodes {
			if c == statusCode {
				return true
			}
		}
		return false
	case TriggerOnTimeout:
		return timedOut
	default:
		// Always, and the zero Trigger.
		return true
	}
}

func (t Trigger) payload() *TriggerPayload {
	p := &TriggerPayload{Type: string(t.Kind)}
	if p.Type == "" {
		p.Type = string(TriggerAlways)
	}
	p.StatusCodes = append(p.StatusCodes, t.StatusCodes...)
	if t.Timeout > 0 {
		p.TimeoutMs = t.Timeout.Milliseconds()
	}
	return p
}

type fallbackBranch struct {
	step    *Step
	trigger Trigger
}

// Step is a configurable, composable description of one HTTP call plus its
// fallback and continuation behavior. A Step is built up through chained
// setters and consumed exactly once, either by an Executor or by Compile.
// Setters perform no cross-field validation; problems surface when the Step
// is executed or compiled.
//
//	step := relay.NewStep().
//	    URL("https://api.example.com/charge").
//	    Method("POST").
//	    Body(`{"amount":1099}`).
//	    Fallback(backup, relay.OnErrorCodes(500, 503))
type Step struct {
	url      string
	method   string
	headers  map[string]string
	body     string
	metadata map[string]any

	webhooks []Webhook
	quorum   int

	regions      []string
	regionPolicy string
	competition  string
	retry        *RetryPolicy

	mode          ExecutionMode
	dedup         DedupStrategy
	idempotentKey string

	forwardable  map[int]struct{}
	localTimeout time.Duration
	successWhen  string

	fallbacks        []fallbackBranch
	onSuccess        *Step
	onFailure        *Step
	onFailureTimeout time.Duration

	retryAt time.Time
}

// NewStep returns an empty Step in Frugal mode with the hash dedup strategy
// and the default forwardable status set.
func NewStep() *Step {
	s := &Step{
		method:       "GET",
		mode:         Frugal,
		dedup:        DedupHash,
		forwardable:  make(map[int]struct{}, len(defaultForwardable)),
		localTimeout: DefaultLocalTimeout,
	}
	for _, c := range defaultForwardable {
		s.forwardable[c] = struct{}{}
	}
	return s
}

// URL sets the target URL. Required before execution or compilation.
func (s *Step) URL(u string) *Step {
	s.url = u
	return s
}

// Method sets the HTTP method. Defaults to GET; uppercased at compile time.
func (s *Step) Method(m string) *Step {
	s.method = m
	return s
}

// Header sets a single request header, overwriting any previous value.
func (s *Step) Header(key, value string) *Step {
	if s.headers == nil {
		s.headers = make(map[string]string)
	}
	s.headers[key] = value
	return s
}

// Headers replaces the full header map.
func (s *Step) Headers(h map[string]string) *Step {
	s.headers = h
	return s
}

// Body sets the opaque request body.
func (s *Step) Body(b string) *Step {
	s.body = b
	return s
}

// Meta attaches one free-form metadata entry to the job.
func (s *Step) Meta(key string, value any) *Step {
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	s.metadata[key] = value
	return s
}

// Webhook appends a delivery target for the job's result.
func (s *Step) Webhook(url string, regions ...string) *Step {
	s.webhooks = append(s.webhooks, Webhook{URL: url, Regions: regions})
	return s
}

// AddWebhook appends a fully specified webhook target.
func (s *Step) AddWebhook(w Webhook) *Step {
	s.webhooks = append(s.webhooks, w)
	return s
}

// Quorum sets the minimum number of successful webhook deliveries.
func (s *Step) Quorum(n int) *Step {
	s.quorum = n
	return s
}

// Regions sets the candidate execution regions.
func (s *Step) Regions(regions ...string) *Step {
	s.regions = regions
	return s
}

// RegionPolicy sets the region-failure policy ("fallback" or "strict").
func (s *Step) RegionPolicy(p string) *Step {
	s.regionPolicy = p
	return s
}

// Competition sets the multi-region competition mode ("race" or "fanout").
func (s *Step) Competition(m string) *Step {
	s.competition = m
	return s
}

// Retry sets the retry/reroute policy executed by the service.
func (s *Step) Retry(rp RetryPolicy) *Step {
	s.retry = &rp
	return s
}

// Mode sets the execution mode.
func (s *Step) Mode(m ExecutionMode) *Step {
	s.mode = m
	return s
}

// Dedup sets the deduplication strategy. An explicit IdempotentKey always
// wins over the strategy.
func (s *Step) Dedup(d DedupStrategy) *Step {
	s.dedup = d
	return s
}

// IdempotentKey sets an explicit deduplication key.
func (s *Step) IdempotentKey(key string) *Step {
	s.idempotentKey = key
	return s
}

// ForwardOn replaces the set of status codes that qualify a local failure
// for fallback and remote forwarding.
func (s *Step) ForwardOn(codes ...int) *Step {
	s.forwardable = make(map[int]struct{}, len(codes))
	for _, c := range codes {
		s.forwardable[c] = struct{}{}
	}
	return s
}

// LocalTimeout bounds the Frugal local attempt.
func (s *Step) LocalTimeout(d time.Duration) *Step {
	s.localTimeout = d
	return s
}

// SuccessWhen sets an expression evaluated against a 2xx response
// ({status_code, headers, body} in scope) that must be true for the response
// to count as success. A false result is handled as a forwardable failure.
func (s *Step) SuccessWhen(expression string) *Step {
	s.successWhen = expression
	return s
}

// Fallback appends an alternative Step tried when the primary attempt fails
// and the trigger matches. Branches are tried in declared order,
// first-match-wins. The branch is owned by this Step.
func (s *Step) Fallback(step *Step, trigger Trigger) *Step {
	s.fallbacks = append(s.fallbacks, fallbackBranch{step: step, trigger: trigger})
	return s
}

// OnSuccess sets the continuation launched after this Step succeeds. On a
// local success it runs detached; its outcome is never joined into the
// triggering call.
func (s *Step) OnSuccess(step *Step) *Step {
	s.onSuccess = step
	return s
}

// OnFailure sets the continuation the service runs when all paths fail,
// after an optional delay.
func (s *Step) OnFailure(step *Step, after time.Duration) *Step {
	s.onFailure = step
	s.onFailureTimeout = after
	return s
}

// RetryAt sets a not-before timestamp for the job.
func (s *Step) RetryAt(t time.Time) *Step {
	s.retryAt = t
	return s
}

func (s *Step) isForwardable(code int) bool {
	_, ok := s.forwardable[code]
	return ok
}

package relay

import "time"

// JobDescription is the wire-format record submitted to the Relay execution
// service. It is produced by compiling a Step tree and is never built by hand
// except in tests. Field names are the service's contract; keep the json tags
// here as the single mapping between internal names and wire names.
//
// Optional fields that equal their documented default are omitted from the
// payload. The service interprets an absent field as its default, so omission
// is a size convention, not a semantic one.
type JobDescription struct {
	URL      string            `json:"url"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     string            `json:"body,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`

	Webhooks []Webhook `json:"webhooks,omitempty"`
	// Quorum is the minimum number of webhook deliveries that must succeed
	// for the job to count as delivered. Omitted when 1 (the default).
	Quorum int `json:"quorum,omitempty"`

	Regions []string `json:"regions,omitempty"`
	// RegionPolicy is "fallback" (default, omitted) or "strict".
	RegionPolicy string `json:"regionPolicy,omitempty"`
	// Competition is "race" (default, omitted) or "fanout".
	Competition string `json:"competition,omitempty"`

	Retry *RetryPolicy `json:"retry,omitempty"`

	// SuccessWhen is an optional expression evaluated by the service against
	// the response to decide whether a 2xx outcome counts as success.
	SuccessWhen string `json:"successWhen,omitempty"`

	// Trigger is set only on nodes that live inside a fallbackJob chain; it
	// tells the service when this fallback becomes eligible.
	Trigger *TriggerPayload `json:"trigger,omitempty"`

	// FallbackJob is the head of a singly linked chain of alternatives, in
	// first-to-try order.
	FallbackJob *JobDescription `json:"fallbackJob,omitempty"`

	OnSuccess          *JobDescription `json:"onSuccess,omitempty"`
	OnFailure          *JobDescription `json:"onFailure,omitempty"`
	OnFailureTimeoutMs int64           `json:"onFailureTimeoutMs,omitempty"`

	IdempotentKey string     `json:"idempotentKey,omitempty"`
	RetryAt       *time.Time `json:"retryAt,omitempty"`
}

// Webhook is one delivery target for job results.
type Webhook struct {
	URL     string   `json:"url"`
	Regions []string `json:"regions,omitempty"`
	// HasQuorumVote defaults to true and is omitted unless explicitly false.
	HasQuorumVote *bool `json:"has_quorum_vote,omitempty"`
}

// RetryPolicy describes the retry/reroute behavior the service should apply.
// The client never executes this policy itself.
type RetryPolicy struct {
	MaxRetries      int   `json:"maxRetries,omitempty"`
	MaxReroutes     int   `json:"maxReroutes,omitempty"`
	RetryOnStatus   []int `json:"retryOnStatus,omitempty"`
	RerouteOnStatus []int `json:"rerouteOnStatus,omitempty"`
}

// TriggerPayload is the wire form of a fallback trigger condition.
type TriggerPayload struct {
	Type        string `json:"type"`
	StatusCodes []int  `json:"statusCodes,omitempty"`
	TimeoutMs   int64  `json:"timeoutMs,omitempty"`
}

// JobResult is the service's acknowledgment of an accepted job.
type JobResult struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (rp *RetryPolicy) isZero() bool {
	return rp == nil ||
		(rp.MaxRetries == 0 && rp.MaxReroutes == 0 &&
			len(rp.RetryOnStatus) == 0 && len(rp.RerouteOnStatus) == 0)
}

package relay

import (
	"fmt"
	"strings"
)

// maxCompileDepth bounds fallback/continuation nesting. Trees are built from
// freshly constructed Steps so cycles cannot occur, but the bound keeps a
// runaway builder from producing payloads the service would reject anyway.
const maxCompileDepth = 32

// Compile lowers the Step tree into its wire-format JobDescription. The Step
// is not modified; compiling twice is legal, and with DedupUnique each
// compilation carries a fresh key.
func (s *Step) Compile() (*JobDescription, error) {
	return s.compile(0)
}

func (s *Step) compile(depth int) (*JobDescription, error) {
	if depth > maxCompileDepth {
		return nil, &ConfigurationError{
			Field:  "fallbacks",
			Reason: fmt.Sprintf("job nesting exceeds %d levels", maxCompileDepth),
		}
	}
	if s.url == "" {
		return nil, &ConfigurationError{Field: "url", Reason: "target URL is required"}
	}
	if s.method == "" {
		return nil, &ConfigurationError{Field: "method", Reason: "HTTP method is required"}
	}

	jd := &JobDescription{
		URL:         s.url,
		Method:      strings.ToUpper(s.method),
		Body:        s.body,
		SuccessWhen: s.successWhen,
	}

	if len(s.headers) > 0 {
		jd.Headers = make(map[string]string, len(s.headers))
		for k, v := range s.headers {
			jd.Headers[k] = v
		}
	}
	if len(s.metadata) > 0 {
		jd.Metadata = make(map[string]any, len(s.metadata))
		for k, v := range s.metadata {
			jd.Metadata[k] = v
		}
	}

	for _, w := range s.webhooks {
		cw := Webhook{URL: w.URL, Regions: append([]string(nil), w.Regions...)}
		// has_quorum_vote defaults to true; only an explicit false goes on
		// the wire.
		if w.HasQuorumVote != nil && !*w.HasQuorumVote {
			cw.HasQuorumVote = w.HasQuorumVote
		}
		jd.Webhooks = append(jd.Webhooks, cw)
	}
	if s.quorum > 1 {
		jd.Quorum = s.quorum
	}

	jd.Regions = append(jd.Regions, s.regions...)
	if s.regionPolicy != "" && s.regionPolicy != RegionPolicyFallback {
		jd.RegionPolicy = s.regionPolicy
	}
	if s.competition != "" && s.competition != CompetitionRace {
		jd.Competition = s.competition
	}
	if !s.retry.isZero() {
		rp := *s.retry
		jd.Retry = &rp
	}

	// Fallback branches become a singly linked chain: the list is walked in
	// reverse so branch i carries branches i+1..n as its nested fallbackJob,
	// preserving declared order as first-to-try. A branch that compiled its
	// own chain keeps it ahead of its siblings, matching the local walk,
	// which exhausts a branch's own alternatives before moving on.
	var chain *JobDescription
	for i := len(s.fallbacks) - 1; i >= 0; i-- {
		br := s.fallbacks[i]
		node, err := br.step.compile(depth + 1)
		if err != nil {
			return nil, err
		}
		node.Trigger = br.trigger.payload()
		appendFallback(node, chain)
		chain = node
	}
	jd.FallbackJob = chain

	if s.onSuccess != nil {
		child, err := s.onSuccess.compile(depth + 1)
		if err != nil {
			return nil, err
		}
		jd.OnSuccess = child
	}
	if s.onFailure != nil {
		child, err := s.onFailure.compile(depth + 1)
		if err != nil {
			return nil, err
		}
		jd.OnFailure = child
		if s.onFailureTimeout > 0 {
			jd.OnFailureTimeoutMs = s.onFailureTimeout.Milliseconds()
		}
	}

	jd.IdempotentKey = resolveIdempotentKey(s)
	if !s.retryAt.IsZero() {
		at := s.retryAt
		jd.RetryAt = &at
	}

	return jd, nil
}

// appendFallback attaches tail at the end of node's existing fallback chain.
func appendFallback(node *JobDescription, tail *JobDescription) {
	if tail == nil {
		return
	}
	cur := node
	for cur.FallbackJob != nil {
		cur = cur.FallbackJob
	}
	cur.FallbackJob = tail
}

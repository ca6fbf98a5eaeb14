package relay

import "github.com/google/uuid"

// resolveIdempotentKey picks the deduplication key for one compilation.
// Resolution order: explicit key > strategy-minted key > none.
//
// DedupHash deliberately returns nothing: the service derives a deterministic
// key from url+method+body+account, and synthesizing one client-side would
// defeat that. DedupUnique mints a fresh token per compilation (not per Step
// construction), so executing the same Step twice yields two distinct
// submissions.
func resolveIdempotentKey(s *Step) string {
	if s.idempotentKey != "" {
		return s.idempotentKey
	}
	if s.dedup == DedupUnique {
		return uuid.NewString()
	}
	return ""
}

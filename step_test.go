package relay

import (
	"testing"
	"time"
)

func TestStep_SettersChain(t *testing.T) {
	s := NewStep()
	got := s.URL("https://example.com").
		Method("PUT").
		Header("A", "1").
		Body("x").
		Meta("k", "v").
		Quorum(3).
		Regions("us-east-1").
		Mode(Performance).
		Dedup(DedupUnique).
		LocalTimeout(time.Second)

	if got != s {
		t.Fatalf("setters must return the same Step for chaining")
	}
	if s.url != "https://example.com" || s.method != "PUT" || s.body != "x" {
		t.Errorf("setters did not record values: %+v", s)
	}
	if s.mode != Performance || s.dedup != DedupUnique {
		t.Errorf("mode/dedup not recorded")
	}
}

func TestStep_HeaderOverwrites(t *testing.T) {
	s := NewStep().Header("X-Key", "old").Header("X-Key", "new")
	if s.headers["X-Key"] != "new" {
		t.Errorf("later setter must overwrite, got %s", s.headers["X-Key"])
	}
}

func TestStep_DefaultForwardableSet(t *testing.T) {
	s := NewStep()
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !s.isForwardable(code) {
			t.Errorf("expected %d in default forwardable set", code)
		}
	}
	if s.isForwardable(404) {
		t.Errorf("404 must not be forwardable by default")
	}
}

func TestStep_ForwardOnReplacesSet(t *testing.T) {
	s := NewStep().ForwardOn(418)
	if !s.isForwardable(418) {
		t.Errorf("expected 418 forwardable after ForwardOn")
	}
	if s.isForwardable(500) {
		t.Errorf("ForwardOn must replace the set, 500 still present")
	}
}

func TestTrigger_Matches(t *testing.T) {
	tests := []struct {
		name       string
		trigger    Trigger
		statusCode int
		timedOut   bool
		want       bool
	}{
		{"always matches status", Always(), 500, false, true},
		{"always matches transport", Always(), 0, false, true},
		{"on-error hit", OnErrorCodes(500, 503), 503, false, true},
		{"on-error miss", OnErrorCodes(500), 502, false, false},
		{"on-error no status", OnErrorCodes(500), 0, false, false},
		{"on-timeout hit", OnTimeout(time.Second), 0, true, true},
		{"on-timeout miss", OnTimeout(time.Second), 500, false, false},
		{"zero trigger is always", Trigger{}, 500, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trigger.matches(tt.statusCode, tt.timedOut); got != tt.want {
				t.Errorf("matches(%d, %v) = %v, want %v", tt.statusCode, tt.timedOut, got, tt.want)
			}
		})
	}
}

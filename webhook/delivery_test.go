package webhook

import (
	"testing"
	"time"
)

const sampleDelivery = `{
	"job_id": "job_9f2",
	"idempotent_key": "order-42",
	"status": "success",
	"response": {
		"status_code": 201,
		"headers": {"Content-Type": "application/json"},
		"body": "{\"created\":true}"
	},
	"metadata": {
		"order_id": "ord_42",
		"attempts": 2,
		"deadline": "2026-09-01T12:00:00Z"
	}
}`

func TestParseDelivery(t *testing.T) {
	d, err := ParseDelivery([]byte(sampleDelivery))
	if err != nil {
		t.Fatalf("ParseDelivery failed: %v", err)
	}

	if d.JobID != "job_9f2" || d.IdempotentKey != "order-42" {
		t.Errorf("identity fields wrong: %+v", d)
	}
	if !d.Succeeded() {
		t.Errorf("expected success status")
	}
	if d.Response.StatusCode != 201 {
		t.Errorf("expected status 201, got %d", d.Response.StatusCode)
	}
	if d.Response.Headers["Content-Type"] != "application/json" {
		t.Errorf("headers not parsed: %v", d.Response.Headers)
	}
	if d.Response.Body != `{"created":true}` {
		t.Errorf("body not parsed: %s", d.Response.Body)
	}
	if d.Metadata["order_id"] != "ord_42" {
		t.Errorf("metadata not parsed: %v", d.Metadata)
	}
}

func TestParseDelivery_FailedJob(t *testing.T) {
	raw := `{"job_id":"job_1","status":"failed","response":{"status_code":502,"body":"bad gateway"}}`
	d, err := ParseDelivery([]byte(raw))
	if err != nil {
		t.Fatalf("ParseDelivery failed: %v", err)
	}
	if d.Succeeded() {
		t.Errorf("expected failed status")
	}
	if d.Response.StatusCode != 502 || d.Response.Body != "bad gateway" {
		t.Errorf("response not parsed: %+v", d.Response)
	}
}

func TestParseDelivery_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"job_id":`},
		{"missing job_id", `{"status":"success"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDelivery([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseDelivery_IgnoresUnknownFields(t *testing.T) {
	raw := `{"job_id":"job_1","status":"success","future_field":{"x":1}}`
	if _, err := ParseDelivery([]byte(raw)); err != nil {
		t.Fatalf("unknown fields must be tolerated: %v", err)
	}
}

func TestDecodeMetadata(t *testing.T) {
	d, err := ParseDelivery([]byte(sampleDelivery))
	if err != nil {
		t.Fatalf("ParseDelivery failed: %v", err)
	}

	var meta struct {
		OrderID  string    `json:"order_id"`
		Attempts int       `json:"attempts"`
		Deadline time.Time `json:"deadline"`
	}
	if err := d.DecodeMetadata(&meta); err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}

	if meta.OrderID != "ord_42" || meta.Attempts != 2 {
		t.Errorf("decoded metadata wrong: %+v", meta)
	}
	if meta.Deadline.IsZero() {
		t.Errorf("expected deadline parsed from RFC3339 string")
	}
}

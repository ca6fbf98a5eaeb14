package webhook

import (
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/mitchellh/mapstructure"
)

// Delivery is the payload the service posts to a webhook target after a job
// finishes. The shape is the service's contract; parsing must not alter it.
type Delivery struct {
	JobID         string
	IdempotentKey string
	// Status is "success" or "failed".
	Status   string
	Response DeliveryResponse
	Metadata map[string]any
}

// DeliveryResponse carries the final upstream response for the job.
type DeliveryResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Succeeded reports whether the job completed successfully.
func (d *Delivery) Succeeded() bool { return d.Status == "success" }

// ParseDelivery decodes a raw delivery body. Unknown fields are ignored so
// service-side additions don't break existing consumers.
func ParseDelivery(raw []byte) (*Delivery, error) {
	parsed, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse delivery payload: %w", err)
	}

	d := &Delivery{}
	d.JobID, _ = parsed.Path("job_id").Data().(string)
	d.IdempotentKey, _ = parsed.Path("idempotent_key").Data().(string)
	d.Status, _ = parsed.Path("status").Data().(string)

	if d.JobID == "" {
		return nil, fmt.Errorf("delivery payload missing job_id")
	}

	if code, ok := parsed.Path("response.status_code").Data().(float64); ok {
		d.Response.StatusCode = int(code)
	}
	d.Response.Body, _ = parsed.Path("response.body").Data().(string)
	if headers, ok := parsed.Path("response.headers").Data().(map[string]any); ok {
		d.Response.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			if s, ok := v.(string); ok {
				d.Response.Headers[k] = s
			}
		}
	}

	if meta, ok := parsed.Path("metadata").Data().(map[string]any); ok {
		d.Metadata = meta
	}

	return d, nil
}

// DecodeMetadata converts the free-form metadata map into a caller-defined
// struct. Field mapping uses json tags and tolerates weak typing, with
// string-to-duration and string-to-time conversions.
func (d *Delivery) DecodeMetadata(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(d.Metadata); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}
	return nil
}

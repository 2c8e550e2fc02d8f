package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan warns about role assignments nearing expiry.
	TaskExpiryScan = "rbac:expiry_scan"
	// TaskUsageTrim caps the permission-usage stream.
	TaskUsageTrim = "rbac:usage_trim"
)

// ExpiryScanPayload configures one expiry scan run.
type ExpiryScanPayload struct {
	Window time.Duration `json:"window"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, data), nil
}

// UsageTrimPayload configures one stream-trim run.
type UsageTrimPayload struct {
	Stream string `json:"stream"`
	MaxLen int64  `json:"max_len"`
}

// NewUsageTrimTask constructs an Asynq task for trimming the usage stream.
func NewUsageTrimTask(payload UsageTrimPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUsageTrim, data), nil
}

package usecase

import (
	"context"
	"time"

	"ValueFlow/pkg/queue"
	"ValueFlow/pkg/util"
)

// WindowJobType is the queue message type for deferred window processing.
const WindowJobType = "process_window"

// WindowJobPayload asks for one window run. Span is parsed with day-suffix
// support ("15m", "1h", "7d"); End defaults to enqueue time when zero.
type WindowJobPayload struct {
	Span string `json:"span"`
	End  int64  `json:"end,omitempty"` // unix seconds
}

// ProcessWindowJob executes queued window runs.
type ProcessWindowJob struct {
	proc *WindowProcessor
}

func NewProcessWindowJob(proc *WindowProcessor) *ProcessWindowJob {
	return &ProcessWindowJob{proc: proc}
}

func (j *ProcessWindowJob) Name() string { return "window-processor" }

func (j *ProcessWindowJob) Type() string { return WindowJobType }

func (j *ProcessWindowJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[WindowJobPayload](payload)
	if err != nil {
		return err
	}

	span := util.ParseSpanDefault(p.Span, time.Minute)
	end := time.Now().UTC()
	if p.End > 0 {
		end = time.Unix(p.End, 0).UTC()
	}

	_, err = j.proc.ProcessWindow(ctx, end.Add(-span), end)
	return err
}

var _ queue.Job = (*ProcessWindowJob)(nil)

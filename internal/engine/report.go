package engine

import (
	"time"
)

// FailureEntry records one post that failed during a sweep.
type FailureEntry struct {
	PostID uint   `json:"post_id"`
	Reason string `json:"error"`
}

// SweepReport is the aggregated result of one engine run. It is transient;
// the durable outcome of a sweep lives on the posts themselves.
type SweepReport struct {
	SweepID string `json:"sweep_id"`
	// Processed counts due posts this sweep claimed and handled to completion.
	// Posts lost to a concurrent sweep's claim are skipped and not counted.
	Processed int            `json:"processed"`
	Posted    int            `json:"posted"`
	Failed    int            `json:"failed"`
	Errors    []FailureEntry `json:"errors"`
	RanAt     time.Time      `json:"ran_at"`
}

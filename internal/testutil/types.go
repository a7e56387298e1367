package testutil

import "time"

// ExecutionRecord holds the start and end times of one handler invocation.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

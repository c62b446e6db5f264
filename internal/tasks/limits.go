package tasks

import "github.com/gwlsn/mediavault/internal/model"

// MinConcurrency and MaxConcurrency bound any single task type's worker cap.
const (
	MinConcurrency = 1
	MaxConcurrency = 16
)

// ClampConcurrency keeps n within [MinConcurrency, MaxConcurrency].
func ClampConcurrency(n int) int {
	if n < MinConcurrency {
		return MinConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// Limits maps each task type to its maximum concurrent-run count.
type Limits map[model.TaskType]int

// DefaultLimits mirrors the per-type caps in the engine's default config.
func DefaultLimits() Limits {
	return Limits{
		model.TaskScan:      1,
		model.TaskHash:      4,
		model.TaskScrape:    8,
		model.TaskRename:    2,
		model.TaskBatchMove: 2,
		model.TaskBatchCopy: 2,
		model.TaskCleanup:   1,
	}
}

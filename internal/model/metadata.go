package model

import "time"

// Collection status values stored in collection_metadata.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusPending     = "pending"
	StatusRateLimited = "rate_limited"
)

// CollectionMetadata tracks when price data was last collected for a symbol.
// One row per symbol; owned by the freshness tracker and the scheduler.
type CollectionMetadata struct {
	Symbol              string
	LastAttemptAt       time.Time
	LastSuccessAt       time.Time
	EarliestDate        time.Time
	LatestDate          time.Time
	PointCount          int
	Status              string
	ConsecutiveFailures int
	Priority            int
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

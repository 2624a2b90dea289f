package chrono

import "github.com/xraph/chrono/id"

// ID is the primary identifier type for all chrono entities.
type ID = id.ID

// JobID identifies a scheduled job.
type JobID = id.JobID

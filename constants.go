package allocsnap

import "github.com/allocsnap/allocsnap/internal/constants"

// Re-exported for callers that only import the root package.
const (
	AllocationsFileName = constants.AllocationsFileName
	DatabaseFileName    = constants.DatabaseFileName
	InsertBatchSize     = constants.InsertBatchSize
	DefaultDeviceID     = constants.DefaultDeviceID
)

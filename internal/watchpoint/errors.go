package watchpoint

import "errors"

// Watchpoint errors.
var (
	// ErrWatchpointAbsent indicates a lookup for an ID the manager
	// does not track.
	ErrWatchpointAbsent = errors.New("watchpoint: no such watchpoint")

	// ErrBadSize indicates a watch size the hardware cannot express.
	ErrBadSize = errors.New("watchpoint: size must be 1, 2, 4 or 8")

	// ErrNoAccess indicates a request watching neither reads nor
	// writes.
	ErrNoAccess = errors.New("watchpoint: at least one of read or write must be watched")
)

package common

import "time"

// ParentID is the roster id reserved for the guardian/controller identity.
const ParentID int64 = 0

// PinHashPrefix tags the hash format stored in the roster.
const PinHashPrefix = "sha256:"

// Defaults shared by config and services.
const (
	DefaultCheckInterval   = 10 * time.Second
	DefaultCacheTTL        = 60 * time.Second
	DefaultPairingTimeout  = 300 * time.Second
	DefaultPairingInterval = 3 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultIdleThreshold   = 5 * time.Minute
)

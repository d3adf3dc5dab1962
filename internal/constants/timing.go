package constants

import "time"

// Handler timeouts and lockout policy from spec.md §5/§4.7.
const (
	DefaultHandlerTimeout = 4 * time.Second
	ShutdownDrainDeadline = 5 * time.Second

	LoginMaxFailures   = 5
	LoginLockoutWindow = 3 * time.Minute
)

// Pool/buffer sizing.
const (
	DefaultReadBufSize = 4096
	DefaultSendBufSize = 4096
)

// Dispatch queue depth; overflow drops the oldest queued packet.
const DispatchQueueDepth = 64

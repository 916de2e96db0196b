// Package endure is a durable execution SDK. Application code declares
// long-running workflows as ordinary Go functions; each intermediate step
// (an action) is recorded in and coordinated by an external Durable Engine
// over HTTP, giving effectively-once semantics across crashes and retries.
package endure

import "github.com/endurehq/endure-go/internal/engineclient"

// Log is one state report sent to the engine for an (execution, action)
// pair.
type Log = engineclient.Log

// LogStatus is the lifecycle state an action reports.
type LogStatus = engineclient.LogStatus

// Log statuses.
const (
	StatusStarted   = engineclient.StatusStarted
	StatusCompleted = engineclient.StatusCompleted
	StatusFailed    = engineclient.StatusFailed
)

// RetryMechanism names the backoff policy the engine applies between
// retries.
type RetryMechanism = engineclient.RetryMechanism

// Retry mechanisms.
const (
	RetryExponential = engineclient.RetryExponential
	RetryLinear      = engineclient.RetryLinear
	RetryConstant    = engineclient.RetryConstant
)

// Descriptor is a structural type description emitted for discovery: a
// string for scalar and container types, or a map of field name to
// Descriptor for record types. Consumers must accept either form at any
// position.
type Descriptor = any

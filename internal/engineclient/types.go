package engineclient

import "time"

// LogStatus is the lifecycle state an action reports to the engine.
type LogStatus string

const (
	StatusStarted   LogStatus = "started"
	StatusCompleted LogStatus = "completed"
	StatusFailed    LogStatus = "failed"
)

// RetryMechanism names the backoff policy the engine applies between
// retries. The engine owns the actual delay; the SDK only declares the
// policy and obeys the retry_at it gets back.
type RetryMechanism string

const (
	RetryExponential RetryMechanism = "exponential"
	RetryLinear      RetryMechanism = "linear"
	RetryConstant    RetryMechanism = "constant"
)

// Log is one state report for an (execution, action) pair. All fields
// except Status are optional on the wire.
type Log struct {
	Status         LogStatus      `json:"status"`
	Input          any            `json:"input"`
	Output         any            `json:"output"`
	MaxRetries     *int           `json:"max_retries"`
	RetryMechanism RetryMechanism `json:"retry_method,omitempty"`
	Timestamp      string         `json:"timestamp"`
}

// NewLog builds a Log stamped with the current UTC time.
func NewLog(status LogStatus) Log {
	return Log{Status: status, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
}

// Response is the normalized engine reply. It is returned for success and
// HTTP-error statuses alike; callers dispatch on StatusCode. Payload is the
// decoded JSON body, empty when the body was absent or not JSON. Raw keeps
// the undecoded body for free-form field extraction.
type Response struct {
	StatusCode int
	Payload    map[string]any
	Raw        []byte
}

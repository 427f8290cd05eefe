package domain

import "time"

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
	RunTimeout   RunStatus = "timeout"
)

// IsTerminal reports whether no further state transition is valid.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunTimeout:
		return true
	default:
		return false
	}
}

// ErrorKind classifies why a run failed, driving the retry policy (§4.1).
type ErrorKind string

const (
	ErrorKindValidation            ErrorKind = "validation"
	ErrorKindUnauthorized          ErrorKind = "unauthorized"
	ErrorKindRetryableTransient    ErrorKind = "retryable_transient"
	ErrorKindRetryableExhausted    ErrorKind = "retryable_exhausted"
	ErrorKindLimitExceeded         ErrorKind = "limit_exceeded"
	ErrorKindTimeout               ErrorKind = "timeout"
	ErrorKindUserCancelled         ErrorKind = "user_cancelled"
	ErrorKindInternal              ErrorKind = "internal"
)

// Retryable reports whether this classification should route back to
// queued (subject to retries_remaining) rather than terminate directly.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindRetryableTransient
}

const DefaultRetriesRemaining = 3

// Run is a single durable attempt to execute SQL on behalf of a user.
// executed_sql is a snapshot taken at enqueue time so later edits to the
// parent query never change what an in-flight or historical run executed.
type Run struct {
	ID               string
	OrgID            string
	QueryID          *string
	ScheduleID       *string
	DataSourceID     string
	ExecutedSQL      string
	Parameters       map[string]string
	// ParamValues holds the bound parameter values in the same order as
	// the positional placeholders ($1, $2, ...) baked into ExecutedSQL at
	// enqueue time, so a retry replays the exact same binding.
	ParamValues      []string
	Status           RunStatus
	RunnerID         *string
	TimeoutSeconds   int
	MaxRows          int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     *string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Attempt          int
	RetriesRemaining int
	NotBefore        time.Time
	IdempotencyKey   *string
	CancelRequested  bool
	Priority         int
}

type RunResult struct {
	ID              string
	RunID           string
	Columns         []ColumnDef
	Rows            [][]any
	RowCount        int
	ByteCount       int
	Truncated       bool
	ExecutionTimeMS int64
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

type ColumnDef struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// DeadLetterEntry is the terminal landing zone for runs that exhausted
// their retry budget under a retryable error class.
type DeadLetterEntry struct {
	RunID       string
	FailureKind ErrorKind
	LastError   string
	MovedAt     time.Time
}

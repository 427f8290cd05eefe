package domain

import "errors"

var (
	ErrOrganizationNotFound = errors.New("organization not found")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailTaken    = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrDataSourceNotFound = errors.New("data source not found")

	ErrQueryNotFound  = errors.New("query not found")
	ErrSQLRejected    = errors.New("sql rejected by safety gate")
	ErrParameterInvalid = errors.New("parameter value invalid")

	ErrRunNotFound        = errors.New("run not found")
	ErrRunNotOwned        = errors.New("run is not owned by this runner")
	ErrRunTerminal        = errors.New("run is already in a terminal state")
	ErrRunNotCancellable  = errors.New("run cannot be cancelled in its current state")
	ErrDuplicateRun       = errors.New("run with this idempotency key already exists")
	ErrResultNotAvailable = errors.New("run has no persisted result")

	ErrScheduleNotFound      = errors.New("schedule not found")
	ErrInvalidCronExpr       = errors.New("invalid cron expression")
	ErrScheduleAlreadyPaused = errors.New("schedule is already paused")
	ErrScheduleNotPaused     = errors.New("schedule is not paused")
	ErrScheduleNameConflict  = errors.New("schedule with this name already exists")

	ErrForbidden = errors.New("caller is not permitted to perform this action")
)

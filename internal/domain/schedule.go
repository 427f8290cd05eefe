package domain

import "time"

// Schedule fires exactly one run per cron firing window, even across
// horizontally scaled scheduler replicas (see internal/scheduler).
type Schedule struct {
	ID             string
	OrgID          string
	QueryID        string
	Name           string
	CronExpr       string
	Parameters     map[string]string
	Enabled        bool
	LastRunAt      *time.Time
	NextRunAt      time.Time
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

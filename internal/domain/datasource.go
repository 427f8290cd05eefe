package domain

import "time"

type DataSourceType string

const (
	DataSourceTypePostgres DataSourceType = "postgres"
)

// DataSource holds connection details for an external SQL source. The
// connection string is stored only in encrypted form (internal/crypto)
// and must never be serialized in any API response.
type DataSource struct {
	ID                        string
	OrgID                     string
	Name                      string
	Type                      DataSourceType
	ConnectionStringEncrypted string
	CreatedBy                 string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

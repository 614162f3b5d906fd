package constant

import "time"

const (
	DefaultBaseURL             = "https://api.ingenuity.com/"
	DefaultTimeout             = 30 * time.Second
	DefaultBulkConcurrency     = 4
	DefaultTempFilePattern     = "QCI_DP_*.zip"
	DefaultReportDateLayout    = "2006-01-02"
	DefaultTableName           = "qci-ledger-table"
	DefaultRetryMaxAttempts    = 10
	DefaultMaxListEntries      = 10
	GrantTypeClientCredentials = "client_credentials"
)

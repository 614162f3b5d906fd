package cmd

import (
	"os"
	"time"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

var flgs = &Flags{}

type Flags struct {
	BaseURL      string
	AccessToken  string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	LogLevel     string
	LogFormat    string
	TableName    string
	EndpointURL  string

	ID          string
	SecondaryID string
	Concurrency int
	Record      bool
	State       string
	StartDate   string
	EndDate     string
	Sort        string
	Emails      []string
	Output      string
	Size        int
	Interval    time.Duration
}

var flagMap = FlagMap{
	BaseURL: FlagSet[string]{
		Name:  "base-url",
		Usage: "Root URL of the QCI API.",
		Value: qci.DefaultBaseURL,
	},
	AccessToken: FlagSet[string]{
		Name:  "access-token",
		Usage: "QCI access token. When empty, a token is requested with the client credentials.",
		Value: os.Getenv("QCI_ACCESS_TOKEN"),
	},
	ClientID: FlagSet[string]{
		Name:  "client-id",
		Usage: "QCI API key ID. Defaults to $QCI_CLIENT_ID.",
		Value: os.Getenv("QCI_CLIENT_ID"),
	},
	ClientSecret: FlagSet[string]{
		Name:  "client-secret",
		Usage: "QCI API key secret. Defaults to $QCI_CLIENT_SECRET.",
		Value: os.Getenv("QCI_CLIENT_SECRET"),
	},
	Timeout: FlagSet[time.Duration]{
		Name:  "timeout",
		Usage: "Timeout of each QCI API request.",
		Value: qci.DefaultTimeout,
	},
	LogLevel: FlagSet[string]{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn or error.",
		Value: "warn",
	},
	LogFormat: FlagSet[string]{
		Name:  "log-format",
		Usage: "Log format: text or json.",
		Value: "text",
	},
	TableName: FlagSet[string]{
		Name:  "table-name",
		Usage: "The name of the DynamoDB table holding the submission ledger.",
		Value: ledger.DefaultTableName,
	},
	EndpointURL: FlagSet[string]{
		Name:  "endpoint-url",
		Usage: "Override the default DynamoDB URL with the given URL.",
		Value: "",
	},
	ID: FlagSet[string]{
		Name:  "id",
		Usage: "Data package ID or accession ID of the test.",
		Value: "",
	},
	SecondaryID: FlagSet[string]{
		Name:  "secondary-id",
		Usage: "Secondary ID of the sample. Only allowed with a single primary ID.",
		Value: "",
	},
	Concurrency: FlagSet[int]{
		Name:  "concurrency",
		Usage: "Number of uploads running at the same time.",
		Value: qci.DefaultBulkConcurrency,
	},
	Record: FlagSet[bool]{
		Name:  "record",
		Usage: "Keep the submission in the DynamoDB ledger.",
		Value: false,
	},
	State: FlagSet[string]{
		Name:  "state",
		Usage: "Filter tests by state: pending, in_review, needs_review or final.",
		Value: "",
	},
	StartDate: FlagSet[string]{
		Name:  "start-date",
		Usage: "Earliest received date, YYYY-MM-DD.",
		Value: "",
	},
	EndDate: FlagSet[string]{
		Name:  "end-date",
		Usage: "Latest received date, YYYY-MM-DD.",
		Value: "",
	},
	Sort: FlagSet[string]{
		Name:  "sort",
		Usage: "Sort order: receivedDateAsc or receivedDateDesc.",
		Value: "",
	},
	Emails: FlagSet[[]string]{
		Name:  "email",
		Usage: "Email of a QCI user to share the test with. Can be repeated.",
		Value: nil,
	},
	Output: FlagSet[string]{
		Name:  "output",
		Usage: "File the PDF report is written to. Defaults to <ID>_<YYYY-MM-DD>.pdf.",
		Value: "",
	},
	Size: FlagSet[int]{
		Name:  "size",
		Usage: "Maximum number of ledger entries to list.",
		Value: ledger.DefaultMaxListEntries,
	},
	Interval: FlagSet[time.Duration]{
		Name:  "interval",
		Usage: "Time between two status polls.",
		Value: 30 * time.Second,
	},
}

type FlagSet[T any] struct {
	Name  string
	Usage string
	Value T
}

type FlagMap struct {
	BaseURL      FlagSet[string]
	AccessToken  FlagSet[string]
	ClientID     FlagSet[string]
	ClientSecret FlagSet[string]
	Timeout      FlagSet[time.Duration]
	LogLevel     FlagSet[string]
	LogFormat    FlagSet[string]
	TableName    FlagSet[string]
	EndpointURL  FlagSet[string]
	ID           FlagSet[string]
	SecondaryID  FlagSet[string]
	Concurrency  FlagSet[int]
	Record       FlagSet[bool]
	State        FlagSet[string]
	StartDate    FlagSet[string]
	EndDate      FlagSet[string]
	Sort         FlagSet[string]
	Emails       FlagSet[[]string]
	Output       FlagSet[string]
	Size         FlagSet[int]
	Interval     FlagSet[time.Duration]
}

func setPersistentFlags(c *cobra.Command, flgs *Flags) {
	f := c.PersistentFlags()
	f.StringVar(&flgs.BaseURL, flagMap.BaseURL.Name, flagMap.BaseURL.Value, flagMap.BaseURL.Usage)
	f.StringVar(&flgs.AccessToken, flagMap.AccessToken.Name, flagMap.AccessToken.Value, flagMap.AccessToken.Usage)
	f.StringVar(&flgs.ClientID, flagMap.ClientID.Name, flagMap.ClientID.Value, flagMap.ClientID.Usage)
	f.StringVar(&flgs.ClientSecret, flagMap.ClientSecret.Name, flagMap.ClientSecret.Value, flagMap.ClientSecret.Usage)
	f.DurationVar(&flgs.Timeout, flagMap.Timeout.Name, flagMap.Timeout.Value, flagMap.Timeout.Usage)
	f.StringVar(&flgs.LogLevel, flagMap.LogLevel.Name, flagMap.LogLevel.Value, flagMap.LogLevel.Usage)
	f.StringVar(&flgs.LogFormat, flagMap.LogFormat.Name, flagMap.LogFormat.Value, flagMap.LogFormat.Usage)
	f.StringVar(&flgs.TableName, flagMap.TableName.Name, flagMap.TableName.Value, flagMap.TableName.Usage)
	f.StringVar(&flgs.EndpointURL, flagMap.EndpointURL.Name, flagMap.EndpointURL.Value, flagMap.EndpointURL.Usage)
}

func setIDFlag(c *cobra.Command, flgs *Flags) {
	c.Flags().StringVar(&flgs.ID, flagMap.ID.Name, flagMap.ID.Value, flagMap.ID.Usage)
}

package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/cmd"
	"github.com/etaoni/qci/internal/mock"
	"github.com/etaoni/qci/internal/test"
	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

func TestCreateRootCommand(t *testing.T) {
	c := cmd.CommandFactory{}.CreateRootCommand(&cmd.Flags{})
	if c.Use != "qci" {
		t.Errorf("Use = %s, want qci", c.Use)
	}
	if c.RunE != nil {
		t.Error("root command should only show help")
	}
}

func testRunAllCommand(t *testing.T, f cmd.CommandFactory, wantErr error) {
	type testCase struct {
		name string
		cmd  *cobra.Command
		args []string
	}
	tests := []testCase{
		{
			name: "token command",
			cmd:  f.CreateTokenCommand(&cmd.Flags{}),
		},
		{
			name: "upload command",
			cmd:  f.CreateUploadCommand(&cmd.Flags{}),
			args: []string{"DM-1", "DM-2"},
		},
		{
			name: "status command",
			cmd:  f.CreateStatusCommand(&cmd.Flags{ID: "DP_1"}),
		},
		{
			name: "ls command",
			cmd:  f.CreateLSCommand(&cmd.Flags{}),
		},
		{
			name: "share command",
			cmd:  f.CreateShareCommand(&cmd.Flags{ID: "DP_1", Emails: []string{"a@example.com"}}),
		},
		{
			name: "report command",
			cmd:  f.CreateReportCommand(&cmd.Flags{ID: "DP_1"}),
		},
		{
			name: "result command",
			cmd:  f.CreateResultCommand(&cmd.Flags{ID: "DP_1"}),
		},
		{
			name: "profiles command",
			cmd:  f.CreateProfilesCommand(&cmd.Flags{}),
		},
		{
			name: "history command",
			cmd:  f.CreateHistoryCommand(&cmd.Flags{}),
		},
		{
			name: "watch command",
			cmd:  f.CreateWatchCommand(&cmd.Flags{}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cmd.RunE(&cobra.Command{}, tt.args); !errors.Is(err, wantErr) {
				t.Errorf("RunE() error = %v, wantErr %v", err, wantErr)
			}
		})
	}
}

func TestRunAllCommandShouldReturnCommandFactoryError(t *testing.T) {
	testRunAllCommand(t, cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return nil, test.ErrorTest
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return nil, test.ErrorTest
		},
	}, test.ErrorTest)
}

func TestRunAllCommandShouldReturnClientError(t *testing.T) {
	testRunAllCommand(t, cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return &mock.Client{}, nil
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return &mock.Store{}, nil
		},
	}, mock.ErrNotImplemented)
}

func TestRunAllCommandShouldSucceed(t *testing.T) {
	testRunAllCommand(t, cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.SuccessfulMockClient, nil
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return mock.SuccessfulMockStore, nil
		},
		Stdout: &bytes.Buffer{},
	}, nil)
}

func TestCommandShouldUseGivenAccessToken(t *testing.T) {
	var gotToken string
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				ListTestsFunc: func(ctx context.Context, params *qci.ListTestsInput) (*qci.ListTestsOutput, error) {
					gotToken = params.AccessToken
					return &qci.ListTestsOutput{}, nil
				},
			}, nil
		},
	}
	c := f.CreateLSCommand(&cmd.Flags{AccessToken: "given-token"})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if gotToken != "given-token" {
		t.Errorf("access token = %s, want given-token", gotToken)
	}
}

func TestCommandShouldRequestAccessToken(t *testing.T) {
	var gotParams *qci.GetAccessTokenInput
	var gotToken string
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				GetAccessTokenFunc: func(ctx context.Context, params *qci.GetAccessTokenInput) (*qci.GetAccessTokenOutput, error) {
					gotParams = params
					return &qci.GetAccessTokenOutput{AccessToken: "fetched-token"}, nil
				},
				GetTestProductProfilesFunc: func(ctx context.Context, params *qci.GetTestProductProfilesInput) (*qci.GetTestProductProfilesOutput, error) {
					gotToken = params.AccessToken
					return &qci.GetTestProductProfilesOutput{}, nil
				},
			}, nil
		},
	}
	c := f.CreateProfilesCommand(&cmd.Flags{ClientID: test.ClientID, ClientSecret: test.ClientSecret})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if gotParams.ClientID != test.ClientID || gotParams.ClientSecret != test.ClientSecret {
		t.Errorf("credentials = %+v", gotParams)
	}
	if gotToken != "fetched-token" {
		t.Errorf("access token = %s, want fetched-token", gotToken)
	}
}

func TestCreateLSCommandShouldPassFilters(t *testing.T) {
	var got *qci.ListTestsInput
	stdout := &bytes.Buffer{}
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				ListTestsFunc: func(ctx context.Context, params *qci.ListTestsInput) (*qci.ListTestsOutput, error) {
					got = params
					return &qci.ListTestsOutput{Tests: []qci.TestSummary{{DataPackageID: "DP_1"}}}, nil
				},
			}, nil
		},
		Stdout: stdout,
	}
	c := f.CreateLSCommand(&cmd.Flags{
		AccessToken: test.AccessToken,
		State:       "final",
		StartDate:   "2023-01-01",
		EndDate:     "2023-12-31",
		Sort:        "receivedDateAsc",
	})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	want := qci.ListTestsInput{
		AccessToken: test.AccessToken,
		State:       qci.TestStateFinal,
		StartDate:   "2023-01-01",
		EndDate:     "2023-12-31",
		Sort:        qci.SortReceivedDateAsc,
	}
	if *got != want {
		t.Errorf("ListTests() params = %+v, want %+v", *got, want)
	}
	var printed cmd.LSResult
	if err := json.Unmarshal(stdout.Bytes(), &printed); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(printed.Tests) != 1 || printed.Tests[0].DataPackageID != "DP_1" {
		t.Errorf("printed = %+v", printed)
	}
}

func TestCreateShareCommandShouldShareWithEveryEmail(t *testing.T) {
	var got *qci.ShareTestInput
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				ShareTestFunc: func(ctx context.Context, params *qci.ShareTestInput) (*qci.ShareTestOutput, error) {
					got = params
					return &qci.ShareTestOutput{Body: []byte("OK")}, nil
				},
			}, nil
		},
	}
	c := f.CreateShareCommand(&cmd.Flags{
		AccessToken: test.AccessToken,
		ID:          "DP_1",
		Emails:      []string{"a@example.com", "b@example.com"},
	})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if got.ID != "DP_1" || len(got.Users) != 2 || got.Users[1].Email != "b@example.com" {
		t.Errorf("ShareTest() params = %+v", got)
	}
}

func TestCreateStatusCommandShouldUpdateLedger(t *testing.T) {
	var got *ledger.UpdateStatusInput
	status := test.NewSubmissionStatus("DP_1", "DM-1")
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				GetSubmissionStatusFunc: func(ctx context.Context, params *qci.GetSubmissionStatusInput) (*qci.GetSubmissionStatusOutput, error) {
					return &qci.GetSubmissionStatusOutput{Status: status}, nil
				},
			}, nil
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return mock.Store{
				UpdateStatusFunc: func(ctx context.Context, params *ledger.UpdateStatusInput) (*ledger.UpdateStatusOutput, error) {
					got = params
					return &ledger.UpdateStatusOutput{}, nil
				},
			}, nil
		},
	}
	c := f.CreateStatusCommand(&cmd.Flags{AccessToken: test.AccessToken, ID: "DM-1", Record: true})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	if got == nil || got.ID != "DP_1" || got.Status != status {
		t.Errorf("UpdateStatus() params = %+v", got)
	}
}

func TestCreateUploadCommand(t *testing.T) {
	uploadFunc := func(ctx context.Context, params *qci.UploadDataPackageInput) (*qci.UploadDataPackageOutput, error) {
		if params.DataPackage.PrimaryID == "DM-bad" {
			return nil, test.ErrorTest
		}
		return &qci.UploadDataPackageOutput{
			Status: test.NewSubmissionStatus("DP_"+params.DataPackage.PrimaryID, params.DataPackage.PrimaryID),
		}, nil
	}
	tests := []struct {
		name         string
		flgs         *cmd.Flags
		args         []string
		wantErr      error
		wantUploads  int
		wantRecorded []string
	}{
		{
			name:    "should require a primary ID",
			flgs:    &cmd.Flags{AccessToken: test.AccessToken},
			wantErr: errors.New("at least one primary ID is required"),
		},
		{
			name:    "should refuse a secondary ID for several packages",
			flgs:    &cmd.Flags{AccessToken: test.AccessToken, SecondaryID: "S-1"},
			args:    []string{"DM-1", "DM-2"},
			wantErr: errors.New("--secondary-id can only be used with a single primary ID"),
		},
		{
			name:        "should upload every package",
			flgs:        &cmd.Flags{AccessToken: test.AccessToken, Concurrency: 2},
			args:        []string{"DM-1", "DM-2", "DM-3"},
			wantUploads: 3,
		},
		{
			name:         "should record successful uploads",
			flgs:         &cmd.Flags{AccessToken: test.AccessToken, Record: true},
			args:         []string{"DM-1", "DM-bad", "DM-2"},
			wantErr:      test.ErrorTest,
			wantUploads:  3,
			wantRecorded: []string{"DM-1", "DM-2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			var recorded []string
			f := cmd.CommandFactory{
				CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
					return mock.Client{UploadDataPackageFunc: uploadFunc}, nil
				},
				CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
					return mock.Store{
						RecordFunc: func(ctx context.Context, params *ledger.RecordInput) (*ledger.RecordOutput, error) {
							recorded = append(recorded, params.DataPackage.PrimaryID)
							return &ledger.RecordOutput{}, nil
						},
					}, nil
				},
				Stdout: stdout,
			}
			err := f.CreateUploadCommand(tt.flgs).RunE(&cobra.Command{}, tt.args)
			switch {
			case tt.wantErr == nil && err != nil:
				t.Fatalf("RunE() error = %v", err)
			case tt.wantErr != nil && (err == nil || (!errors.Is(err, tt.wantErr) && err.Error() != tt.wantErr.Error())):
				t.Fatalf("RunE() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantUploads == 0 {
				return
			}
			var printed cmd.UploadResult
			if err := json.Unmarshal(stdout.Bytes(), &printed); err != nil {
				t.Fatalf("output is not JSON: %v", err)
			}
			if len(printed.Uploads) != tt.wantUploads {
				t.Errorf("uploads = %d, want %d", len(printed.Uploads), tt.wantUploads)
			}
			for i, u := range printed.Uploads {
				if u.PrimaryID != tt.args[i] {
					t.Errorf("uploads[%d] = %s, want %s", i, u.PrimaryID, tt.args[i])
				}
			}
			if len(recorded) != len(tt.wantRecorded) {
				t.Errorf("recorded = %v, want %v", recorded, tt.wantRecorded)
			}
		})
	}
}

func TestCreateWatchCommandShouldPrintUpdates(t *testing.T) {
	listed := 0
	stdout := &bytes.Buffer{}
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				GetSubmissionStatusFunc: func(ctx context.Context, params *qci.GetSubmissionStatusInput) (*qci.GetSubmissionStatusOutput, error) {
					status := test.NewSubmissionStatus(params.ID, "DM-1")
					status.Status = ledger.StatusDone
					status.PercentageComplete = 100
					return &qci.GetSubmissionStatusOutput{Status: status}, nil
				},
			}, nil
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return mock.Store{
				ListUnfinishedFunc: func(ctx context.Context, params *ledger.ListUnfinishedInput) (*ledger.ListUnfinishedOutput, error) {
					listed++
					e := &ledger.Entry{ID: "DP_1", AccessionID: "DM-1", Status: "PREPROCESSING"}
					if listed > 1 {
						e.Status = ledger.StatusDone
					}
					return &ledger.ListUnfinishedOutput{Entries: []*ledger.Entry{e}}, nil
				},
				UpdateStatusFunc: func(ctx context.Context, params *ledger.UpdateStatusInput) (*ledger.UpdateStatusOutput, error) {
					return &ledger.UpdateStatusOutput{Entry: &ledger.Entry{
						ID:                 params.ID,
						AccessionID:        "DM-1",
						Status:             params.Status.Status,
						PercentageComplete: params.Status.PercentageComplete,
					}}, nil
				},
			}, nil
		},
		Stdout: stdout,
	}
	c := f.CreateWatchCommand(&cmd.Flags{AccessToken: test.AccessToken, Interval: time.Millisecond})
	if err := c.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("RunE() error = %v", err)
	}
	var printed ledger.Entry
	if err := json.Unmarshal(stdout.Bytes(), &printed); err != nil {
		t.Fatalf("Unmarshal() error = %v, output %s", err, stdout.String())
	}
	if printed.ID != "DP_1" || printed.Status != ledger.StatusDone {
		t.Errorf("printed entry = %+v", printed)
	}
	if listed != 2 {
		t.Errorf("List() calls = %d, want 2", listed)
	}
}

func TestCreateUploadCommandShouldRecordEachUploadAsItCompletes(t *testing.T) {
	var events []string
	f := cmd.CommandFactory{
		CreateQCIClient: func(ctx context.Context, flags *cmd.Flags) (qci.Client, error) {
			return mock.Client{
				UploadDataPackageFunc: func(ctx context.Context, params *qci.UploadDataPackageInput) (*qci.UploadDataPackageOutput, error) {
					events = append(events, "upload "+params.DataPackage.PrimaryID)
					return &qci.UploadDataPackageOutput{
						Status: test.NewSubmissionStatus("DP_"+params.DataPackage.PrimaryID, params.DataPackage.PrimaryID),
					}, nil
				},
			}, nil
		},
		CreateLedger: func(ctx context.Context, flags *cmd.Flags) (ledger.Store, error) {
			return mock.Store{
				RecordFunc: func(ctx context.Context, params *ledger.RecordInput) (*ledger.RecordOutput, error) {
					events = append(events, "record "+params.DataPackage.PrimaryID)
					if params.DataPackage.PrimaryID == "DM-2" {
						return nil, &ledger.IDDuplicatedError{}
					}
					return &ledger.RecordOutput{}, nil
				},
			}, nil
		},
		Stdout: &bytes.Buffer{},
	}
	c := f.CreateUploadCommand(&cmd.Flags{AccessToken: test.AccessToken, Concurrency: 1, Record: true})
	err := c.RunE(&cobra.Command{}, []string{"DM-1", "DM-2"})
	var duplicated *ledger.IDDuplicatedError
	if !errors.As(err, &duplicated) {
		t.Errorf("RunE() error = %v, want IDDuplicatedError", err)
	}
	want := []string{"upload DM-1", "record DM-1", "upload DM-2", "record DM-2"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

package ledger_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/clock"
	"github.com/etaoni/qci/internal/mock"
	"github.com/etaoni/qci/internal/test"
	"github.com/etaoni/qci/ledger"
	"github.com/google/uuid"
	"github.com/upsidr/dynamotest"
)

func SetupDynamoDB(t *testing.T, initialData ...*types.PutRequest) (tableName string, client *dynamodb.Client, clean func()) {
	client, clean = dynamotest.NewDynamoDB(t)
	tableName = ledger.DefaultTableName + "-" + uuid.NewString()
	dynamotest.PrepTable(t, client, dynamotest.InitialTableSetup{
		Table: &dynamodb.CreateTableInput{
			AttributeDefinitions: []types.AttributeDefinition{
				{
					AttributeName: aws.String("id"),
					AttributeType: types.ScalarAttributeTypeS,
				},
			},
			BillingMode:               types.BillingModePayPerRequest,
			DeletionProtectionEnabled: aws.Bool(false),
			KeySchema: []types.KeySchemaElement{
				{
					AttributeName: aws.String("id"),
					KeyType:       types.KeyTypeHash,
				},
			},
			TableName: aws.String(tableName),
		},
		InitialData: initialData,
	})
	return
}

func prepareTestStore(t *testing.T, ctx context.Context, now time.Time, initialData ...*types.PutRequest) (ledger.Store, func()) {
	t.Helper()
	tableName, raw, clean := SetupDynamoDB(t, initialData...)
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		t.Fatalf("failed to load aws config: %s\n", err)
		return nil, nil
	}
	store, err := ledger.NewFromConfig(cfg,
		ledger.WithTableName(tableName),
		ledger.WithAWSDynamoDBClient(raw),
		ledger.WithClock(mock.Clock{T: now}))
	if err != nil {
		t.Fatalf("failed to create ledger store: %s\n", err)
		return nil, nil
	}
	return store, clean
}

func NewPutRequestWithEntry(t *testing.T, e *ledger.Entry) *types.PutRequest {
	t.Helper()
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		t.Fatalf("failed to marshal entry: %s", err)
	}
	return &types.PutRequest{Item: item}
}

func TestStoreShouldReturnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store, clean := prepareTestStore(t, ctx, now,
		NewPutRequestWithEntry(t, test.NewEntry("DP_1", "DM-1", now)))
	defer clean()
	tests := []struct {
		name      string
		operation func() error
		wantError error
	}{
		{
			name: "Record should return IDNotProvidedError when status has no status URL",
			operation: func() error {
				_, err := store.Record(ctx, &ledger.RecordInput{
					DataPackage: test.NewDataPackage("DM-2"),
					Status:      &qci.SubmissionStatus{Status: "PREPROCESSING"},
				})
				return err
			},
			wantError: &ledger.IDNotProvidedError{},
		},
		{
			name: "Record should return IDDuplicatedError",
			operation: func() error {
				_, err := store.Record(ctx, &ledger.RecordInput{
					DataPackage: test.NewDataPackage("DM-1"),
					Status:      test.NewSubmissionStatus("DP_1", "DM-1"),
				})
				return err
			},
			wantError: &ledger.IDDuplicatedError{},
		},
		{
			name: "Get should return IDNotProvidedError",
			operation: func() error {
				_, err := store.Get(ctx, nil)
				return err
			},
			wantError: &ledger.IDNotProvidedError{},
		},
		{
			name: "UpdateStatus should return IDNotProvidedError",
			operation: func() error {
				_, err := store.UpdateStatus(ctx, nil)
				return err
			},
			wantError: &ledger.IDNotProvidedError{},
		},
		{
			name: "UpdateStatus should return IDNotFoundError",
			operation: func() error {
				_, err := store.UpdateStatus(ctx, &ledger.UpdateStatusInput{
					ID:     "DP_404",
					Status: test.NewSubmissionStatus("DP_404", "DM-404"),
				})
				return err
			},
			wantError: &ledger.IDNotFoundError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.operation()
			if !errors.As(err, reflect.New(reflect.TypeOf(tt.wantError)).Interface()) {
				t.Errorf("error = %v, want %T", err, tt.wantError)
			}
		})
	}
}

func TestStoreRecordAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store, clean := prepareTestStore(t, ctx, now)
	defer clean()

	pkg := qci.NewDataPackage("token", "DM-121212", "14-375C")
	recorded, err := store.Record(ctx, &ledger.RecordInput{
		DataPackage: pkg,
		Status:      test.NewSubmissionStatus("DP_727658804867835145738", "DM-121212"),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	want := &ledger.Entry{
		ID:                 "DP_727658804867835145738",
		AccessionID:        "DM-121212",
		SecondaryID:        "14-375C",
		AnalysisName:       "DM-121212",
		PipelineName:       "QCI Somatic Cancer Pipeline",
		Status:             "PREPROCESSING",
		Stage:              "Validating",
		PercentageComplete: 20,
		StatusURL:          "https://api.ingenuity.com/v1/datapackages/DP_727658804867835145738",
		SubmittedAt:        clock.FormatRFC3339Nano(now),
		UpdatedAt:          clock.FormatRFC3339Nano(now),
		Version:            1,
	}
	if !reflect.DeepEqual(recorded.Entry, want) {
		t.Errorf("Record() got = %v, want %v", recorded.Entry, want)
	}
	got, err := store.Get(ctx, &ledger.GetInput{ID: "DP_727658804867835145738"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.Entry, want) {
		t.Errorf("Get() got = %v, want %v", got.Entry, want)
	}
	missing, err := store.Get(ctx, &ledger.GetInput{ID: "DP_404"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if missing.Entry != nil {
		t.Errorf("Get() got = %v, want nil", missing.Entry)
	}
}

func TestStoreUpdateStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	submittedAt := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	now := submittedAt.Add(time.Hour)
	store, clean := prepareTestStore(t, ctx, now,
		NewPutRequestWithEntry(t, test.NewEntry("DP_1", "DM-1", submittedAt)))
	defer clean()

	status := test.NewSubmissionStatus("DP_1", "DM-1")
	status.Status = "DONE"
	status.Stage = "Pipeline successfully completed"
	status.PercentageComplete = 100
	status.ExportURL = "https://api.ingenuity.com/v1/export/DP_1"

	got, err := store.UpdateStatus(ctx, &ledger.UpdateStatusInput{ID: "DP_1", Status: status})
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	want := test.NewEntry("DP_1", "DM-1", submittedAt)
	want.Status = "DONE"
	want.Stage = "Pipeline successfully completed"
	want.PercentageComplete = 100
	want.ExportURL = "https://api.ingenuity.com/v1/export/DP_1"
	want.UpdatedAt = clock.FormatRFC3339Nano(now)
	want.Version = 2
	if !reflect.DeepEqual(got.Entry, want) {
		t.Errorf("UpdateStatus() got = %v, want %v", got.Entry, want)
	}
}

func TestStoreList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store, clean := prepareTestStore(t, ctx, base,
		NewPutRequestWithEntry(t, test.NewEntry("DP_1", "DM-1", base.Add(1*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_2", "DM-2", base.Add(3*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_3", "DM-3", base.Add(2*time.Minute))),
	)
	defer clean()

	got, err := store.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, e := range got.Entries {
		ids = append(ids, e.ID)
	}
	want := []string{"DP_2", "DP_3", "DP_1"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List() got = %v, want %v", ids, want)
	}
}

func TestStoreListShouldReturnMostRecentAcrossPages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store, clean := prepareTestStore(t, ctx, base,
		NewPutRequestWithEntry(t, test.NewEntry("DP_1", "DM-1", base.Add(1*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_2", "DM-2", base.Add(5*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_3", "DM-3", base.Add(2*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_4", "DM-4", base.Add(4*time.Minute))),
		NewPutRequestWithEntry(t, test.NewEntry("DP_5", "DM-5", base.Add(3*time.Minute))),
	)
	defer clean()

	got, err := store.List(ctx, &ledger.ListInput{Size: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, e := range got.Entries {
		ids = append(ids, e.ID)
	}
	want := []string{"DP_2", "DP_4"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("List() got = %v, want %v", ids, want)
	}
}

func TestStoreListUnfinished(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	entry := func(id, status string) *types.PutRequest {
		e := test.NewEntry(id, "DM"+id, now)
		e.Status = status
		return NewPutRequestWithEntry(t, e)
	}
	store, clean := prepareTestStore(t, ctx, now,
		entry("DP_1", ledger.StatusDone),
		entry("DP_2", "PREPROCESSING"),
		entry("DP_3", ledger.StatusFailed),
		entry("DP_4", "done"),
		entry("DP_5", "RUNNING"),
		entry("DP_6", ledger.StatusError),
	)
	defer clean()

	got, err := store.ListUnfinished(ctx, &ledger.ListUnfinishedInput{PageSize: 1})
	if err != nil {
		t.Fatalf("ListUnfinished() error = %v", err)
	}
	ids := map[string]bool{}
	for _, e := range got.Entries {
		ids[e.ID] = true
	}
	want := map[string]bool{"DP_2": true, "DP_5": true}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ListUnfinished() got = %v, want %v", ids, want)
	}
}

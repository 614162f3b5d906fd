// Package ledger keeps a record of submitted data packages in Amazon DynamoDB,
// so their pipeline status can be followed across runs.
package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/clock"
	"github.com/etaoni/qci/internal/constant"
)

const (
	DefaultTableName        = constant.DefaultTableName
	DefaultRetryMaxAttempts = constant.DefaultRetryMaxAttempts
	DefaultMaxListEntries   = constant.DefaultMaxListEntries
)

// Store is an interface for recording submissions and their status.
type Store interface {
	// Record adds the entry of a freshly uploaded data package.
	Record(ctx context.Context, params *RecordInput) (*RecordOutput, error)
	// Get gets the entry of a data package.
	Get(ctx context.Context, params *GetInput) (*GetOutput, error)
	// UpdateStatus applies the latest submission status to an entry.
	UpdateStatus(ctx context.Context, params *UpdateStatusInput) (*UpdateStatusOutput, error)
	// List lists entries, most recently updated first.
	List(ctx context.Context, params *ListInput) (*ListOutput, error)
	// ListUnfinished lists every entry whose pipeline has not finished.
	ListUnfinished(ctx context.Context, params *ListUnfinishedInput) (*ListUnfinishedOutput, error)
}

// StoreOptions defines configuration options for the DynamoDB-backed Store.
//
// Note: Clock, MarshalMap, UnmarshalMap, UnmarshalListOfMaps and BuildExpression are primarily used
// for testing purposes and should not be modified in typical use.
type StoreOptions struct {
	// DynamoDB is a pointer to the DynamoDB client used for database operations.
	DynamoDB *dynamodb.Client
	// TableName is the name of the DynamoDB table holding the ledger.
	TableName string
	// BaseEndpoint is the base endpoint URL for DynamoDB requests.
	BaseEndpoint string
	// RetryMaxAttempts is the maximum number of attempts for retrying failed DynamoDB operations.
	RetryMaxAttempts int

	Clock               clock.Clock
	MarshalMap          func(in interface{}) (map[string]types.AttributeValue, error)
	UnmarshalMap        func(m map[string]types.AttributeValue, out interface{}) error
	UnmarshalListOfMaps func(l []map[string]types.AttributeValue, out interface{}) error
	BuildExpression     func(b expression.Builder) (expression.Expression, error)
}

// WithTableName is an option function to set the table name of the ledger.
// By default, the table name is set to "qci-ledger-table".
func WithTableName(tableName string) func(*StoreOptions) {
	return func(s *StoreOptions) {
		s.TableName = tableName
	}
}

// WithAWSDynamoDBClient is an option function to set a custom AWS DynamoDB client.
func WithAWSDynamoDBClient(client *dynamodb.Client) func(*StoreOptions) {
	return func(s *StoreOptions) {
		s.DynamoDB = client
	}
}

// WithAWSBaseEndpoint is an option function to set a custom base endpoint, such as DynamoDB Local.
// If the DynamoDB client is set using the WithAWSDynamoDBClient function, this option function is ignored.
func WithAWSBaseEndpoint(baseEndpoint string) func(*StoreOptions) {
	return func(s *StoreOptions) {
		s.BaseEndpoint = baseEndpoint
	}
}

// WithAWSRetryMaxAttempts is an option function to set the maximum number of retry attempts for AWS service calls.
// If the DynamoDB client is set using the WithAWSDynamoDBClient function, this option function is ignored.
func WithAWSRetryMaxAttempts(retryMaxAttempts int) func(*StoreOptions) {
	return func(s *StoreOptions) {
		s.RetryMaxAttempts = retryMaxAttempts
	}
}

// WithClock is an option function to replace the clock used for entry timestamps.
func WithClock(c clock.Clock) func(*StoreOptions) {
	return func(s *StoreOptions) {
		if c != nil {
			s.Clock = c
		}
	}
}

// NewFromConfig creates a new ledger Store using the provided AWS configuration and any additional options.
func NewFromConfig(cfg aws.Config, optFns ...func(*StoreOptions)) (Store, error) {
	o := &StoreOptions{
		TableName:           DefaultTableName,
		RetryMaxAttempts:    DefaultRetryMaxAttempts,
		Clock:               &clock.RealClock{},
		MarshalMap:          attributevalue.MarshalMap,
		UnmarshalMap:        attributevalue.UnmarshalMap,
		UnmarshalListOfMaps: attributevalue.UnmarshalListOfMaps,
		BuildExpression: func(b expression.Builder) (expression.Expression, error) {
			return b.Build()
		},
	}
	for _, opt := range optFns {
		opt(o)
	}
	s := &StoreImpl{
		dynamoDB:            o.DynamoDB,
		tableName:           o.TableName,
		clock:               o.Clock,
		marshalMap:          o.MarshalMap,
		unmarshalMap:        o.UnmarshalMap,
		unmarshalListOfMaps: o.UnmarshalListOfMaps,
		buildExpression:     o.BuildExpression,
	}
	if s.dynamoDB != nil {
		return s, nil
	}
	s.dynamoDB = dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		options.RetryMaxAttempts = o.RetryMaxAttempts
		if o.BaseEndpoint != "" {
			options.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
	})
	return s, nil
}

// StoreImpl is the DynamoDB implementation of Store.
// Note: Always use the ledger.NewFromConfig function to create an instance.
type StoreImpl struct {
	dynamoDB            *dynamodb.Client
	tableName           string
	clock               clock.Clock
	marshalMap          func(in interface{}) (map[string]types.AttributeValue, error)
	unmarshalMap        func(m map[string]types.AttributeValue, out interface{}) error
	unmarshalListOfMaps func(l []map[string]types.AttributeValue, out interface{}) error
	buildExpression     func(b expression.Builder) (expression.Expression, error)
}

// RecordInput represents the input parameters for recording an upload.
type RecordInput struct {
	// DataPackage is the uploaded data package.
	DataPackage qci.DataPackage
	// Status is the submission status returned by the upload.
	Status *qci.SubmissionStatus
}

// RecordOutput represents the result of recording an upload.
type RecordOutput struct {
	Entry *Entry
}

// Record adds the entry of an uploaded data package. The entry is keyed by the data package ID taken from
// the status URL; recording the same data package twice returns an IDDuplicatedError.
func (s *StoreImpl) Record(ctx context.Context, params *RecordInput) (*RecordOutput, error) {
	if params == nil {
		params = &RecordInput{}
	}
	entry := NewEntry(params.DataPackage, params.Status, s.clock.Now())
	if entry.ID == "" {
		return &RecordOutput{}, &IDNotProvidedError{}
	}
	item, err := s.marshalMap(entry)
	if err != nil {
		return &RecordOutput{}, MarshalingAttributeError{Cause: err}
	}
	expr, err := s.buildExpression(expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))))
	if err != nil {
		return &RecordOutput{}, BuildingExpressionError{Cause: err}
	}
	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var cause *types.ConditionalCheckFailedException
		if errors.As(err, &cause) {
			return &RecordOutput{}, &IDDuplicatedError{}
		}
		return &RecordOutput{}, handleDynamoDBError(err)
	}
	return &RecordOutput{Entry: entry}, nil
}

// GetInput represents the input parameters for getting an entry.
type GetInput struct {
	// ID is the data package ID.
	ID string
}

// GetOutput represents the result of getting an entry. Entry is nil when the ID is unknown.
type GetOutput struct {
	Entry *Entry
}

// Get gets the entry of a data package.
func (s *StoreImpl) Get(ctx context.Context, params *GetInput) (*GetOutput, error) {
	if params == nil {
		params = &GetInput{}
	}
	if params.ID == "" {
		return &GetOutput{}, &IDNotProvidedError{}
	}
	resp, err := s.dynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: params.ID},
		},
		TableName:      aws.String(s.tableName),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return &GetOutput{}, handleDynamoDBError(err)
	}
	if resp.Item == nil {
		return &GetOutput{}, nil
	}
	entry := Entry{}
	if err := s.unmarshalMap(resp.Item, &entry); err != nil {
		return &GetOutput{}, UnmarshalingAttributeError{Cause: err}
	}
	return &GetOutput{Entry: &entry}, nil
}

// UpdateStatusInput represents the input parameters for updating the status of an entry.
type UpdateStatusInput struct {
	// ID is the data package ID.
	ID string
	// Status is the latest submission status.
	Status *qci.SubmissionStatus
}

// UpdateStatusOutput represents the result of a status update.
type UpdateStatusOutput struct {
	Entry *Entry
}

// UpdateStatus applies the latest submission status to an entry.
// The write is conditioned on the entry version, so concurrent updates surface as ConditionalCheckFailedError.
func (s *StoreImpl) UpdateStatus(ctx context.Context, params *UpdateStatusInput) (*UpdateStatusOutput, error) {
	if params == nil {
		params = &UpdateStatusInput{}
	}
	if params.Status == nil {
		params.Status = &qci.SubmissionStatus{}
	}
	retrieved, err := s.Get(ctx, &GetInput{ID: params.ID})
	if err != nil {
		return &UpdateStatusOutput{}, err
	}
	if retrieved.Entry == nil {
		return &UpdateStatusOutput{}, &IDNotFoundError{}
	}
	entry := retrieved.Entry
	entry.applyStatus(params.Status, s.clock.Now())
	builder := expression.NewBuilder().
		WithUpdate(expression.
			Add(expression.Name("version"), expression.Value(1)).
			Set(expression.Name("status"), expression.Value(entry.Status)).
			Set(expression.Name("stage"), expression.Value(entry.Stage)).
			Set(expression.Name("percentage_complete"), expression.Value(entry.PercentageComplete)).
			Set(expression.Name("export_url"), expression.Value(entry.ExportURL)).
			Set(expression.Name("updated_at"), expression.Value(entry.UpdatedAt))).
		WithCondition(expression.Name("version").Equal(expression.Value(entry.Version)))
	expr, err := s.buildExpression(builder)
	if err != nil {
		return &UpdateStatusOutput{}, BuildingExpressionError{Cause: err}
	}
	outcome, err := s.dynamoDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: entry.ID},
		},
		TableName:                 aws.String(s.tableName),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return &UpdateStatusOutput{}, handleDynamoDBError(err)
	}
	updated := Entry{}
	if err := s.unmarshalMap(outcome.Attributes, &updated); err != nil {
		return &UpdateStatusOutput{}, UnmarshalingAttributeError{Cause: err}
	}
	return &UpdateStatusOutput{Entry: &updated}, nil
}

// ListInput represents the input parameters for listing entries.
type ListInput struct {
	// Size is the maximum number of entries returned. Defaults to 10.
	Size int32
}

// ListOutput represents the result of listing entries.
type ListOutput struct {
	Entries []*Entry
}

// List scans the whole table and returns the Size most recently updated entries.
func (s *StoreImpl) List(ctx context.Context, params *ListInput) (*ListOutput, error) {
	if params == nil {
		params = &ListInput{}
	}
	if params.Size <= 0 {
		params.Size = DefaultMaxListEntries
	}
	entries, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		Limit:     aws.Int32(params.Size),
	})
	if err != nil {
		return &ListOutput{}, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return clock.RFC3339NanoToTime(entries[i].UpdatedAt).After(clock.RFC3339NanoToTime(entries[j].UpdatedAt))
	})
	if len(entries) > int(params.Size) {
		entries = entries[:params.Size]
	}
	return &ListOutput{Entries: entries}, nil
}

// ListUnfinishedInput represents the input parameters for listing unfinished entries.
type ListUnfinishedInput struct {
	// PageSize is the number of items evaluated per Scan request. Defaults to 10.
	PageSize int32
}

// ListUnfinishedOutput represents the entries whose pipeline has not finished yet.
type ListUnfinishedOutput struct {
	Entries []*Entry
}

// ListUnfinished pages through the whole table and returns every entry that is not finished.
func (s *StoreImpl) ListUnfinished(ctx context.Context, params *ListUnfinishedInput) (*ListUnfinishedOutput, error) {
	if params == nil {
		params = &ListUnfinishedInput{}
	}
	if params.PageSize <= 0 {
		params.PageSize = DefaultMaxListEntries
	}
	builder := expression.NewBuilder().
		WithFilter(expression.Not(expression.Name("status").In(
			expression.Value(StatusDone),
			expression.Value(StatusFailed),
			expression.Value(StatusError))))
	expr, err := s.buildExpression(builder)
	if err != nil {
		return &ListUnfinishedOutput{}, BuildingExpressionError{Cause: err}
	}
	entries, err := s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.tableName),
		Limit:                     aws.Int32(params.PageSize),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return &ListUnfinishedOutput{}, err
	}
	// The filter only knows the upper-case spelling of terminal statuses.
	unfinished := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Finished() {
			unfinished = append(unfinished, e)
		}
	}
	return &ListUnfinishedOutput{Entries: unfinished}, nil
}

func (s *StoreImpl) scan(ctx context.Context, input *dynamodb.ScanInput) ([]*Entry, error) {
	var entries []*Entry
	paginator := dynamodb.NewScanPaginator(s.dynamoDB, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, handleDynamoDBError(err)
		}
		var items []*Entry
		if err := s.unmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, UnmarshalingAttributeError{Cause: err}
		}
		entries = append(entries, items...)
	}
	return entries, nil
}

func handleDynamoDBError(err error) error {
	var cause *types.ConditionalCheckFailedException
	if errors.As(err, &cause) {
		return &ConditionalCheckFailedError{Cause: cause}
	}
	return DynamoDBAPIError{Cause: err}
}

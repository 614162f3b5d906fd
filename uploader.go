package qci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

var errEmptyStatus = errors.New("upload returned no submission status")

// UploaderOptions holds configuration options for an Uploader.
type UploaderOptions struct {
	// Concurrency is the number of uploads in flight at the same time. Defaults to 4.
	Concurrency int
	// OnResult is called once per data package after its upload finished, successfully or not.
	// Calls are serialized, so the function does not need to be safe for concurrent use.
	OnResult func(UploadResult)
	// Logger receives one entry per finished upload. Defaults to a logger that discards everything.
	Logger *slog.Logger
}

// WithConcurrency is an option function to set how many uploads run at the same time.
func WithConcurrency(concurrency int) func(o *UploaderOptions) {
	return func(o *UploaderOptions) {
		o.Concurrency = concurrency
	}
}

// WithOnResult is an option function to observe each upload as soon as it finishes.
func WithOnResult(onResult func(UploadResult)) func(o *UploaderOptions) {
	return func(o *UploaderOptions) {
		o.OnResult = onResult
	}
}

// WithUploaderLogger is an option function to set the logger of the Uploader.
func WithUploaderLogger(logger *slog.Logger) func(o *UploaderOptions) {
	return func(o *UploaderOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// NewUploader creates an Uploader that sends data packages through client using a bounded pool of workers.
func NewUploader(client Client, opts ...func(o *UploaderOptions)) *Uploader {
	o := &UploaderOptions{
		Concurrency: DefaultBulkConcurrency,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultBulkConcurrency
	}
	return &Uploader{
		client:      client,
		concurrency: o.Concurrency,
		onResult:    o.OnResult,
		logger:      o.Logger,
	}
}

// Uploader uploads many data packages concurrently and reports the outcome of each one.
type Uploader struct {
	client      Client
	concurrency int
	onResult    func(UploadResult)
	logger      *slog.Logger

	mu sync.Mutex
}

// UploadResult is the outcome of uploading one data package.
type UploadResult struct {
	// Index is the position of the data package in the input.
	Index int
	// DataPackage is the uploaded data package.
	DataPackage DataPackage
	// Status is the submission status returned by QCI. It is nil when Err is set.
	Status *SubmissionStatus
	// Err is the upload error, if any.
	Err error
}

// UploadAllOutput holds one UploadResult per input data package, in input order.
type UploadAllOutput struct {
	Results []UploadResult
}

// Err aggregates the errors of all failed uploads. It returns nil when every upload succeeded.
func (o *UploadAllOutput) Err() error {
	var merr *multierror.Error
	for _, r := range o.Results {
		if r.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("data package %s: %w", r.DataPackage.PrimaryID, r.Err))
		}
	}
	return merr.ErrorOrNil()
}

// Failed returns the results of the uploads that did not succeed.
func (o *UploadAllOutput) Failed() []UploadResult {
	var failed []UploadResult
	for _, r := range o.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// UploadAll uploads every data package with UploadDataPackage and waits for all of them.
// Once ctx is done no further uploads are started; those data packages report the context error.
func (u *Uploader) UploadAll(ctx context.Context, packages []DataPackage) *UploadAllOutput {
	results := make([]UploadResult, len(packages))
	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i := range packages {
		i := i
		if err := ctx.Err(); err != nil {
			results[i] = u.finish(UploadResult{Index: i, DataPackage: packages[i], Err: err})
			continue
		}
		g.Go(func() error {
			// The slot may have been freed by an upload that saw ctx canceled.
			if err := ctx.Err(); err != nil {
				results[i] = u.finish(UploadResult{Index: i, DataPackage: packages[i], Err: err})
				return nil
			}
			results[i] = u.upload(ctx, i, packages[i])
			return nil
		})
	}
	_ = g.Wait()
	return &UploadAllOutput{Results: results}
}

func (u *Uploader) upload(ctx context.Context, i int, pkg DataPackage) UploadResult {
	out, err := u.client.UploadDataPackage(ctx, &UploadDataPackageInput{DataPackage: &pkg})
	if err != nil {
		return u.finish(UploadResult{Index: i, DataPackage: pkg, Err: err})
	}
	if out == nil || out.Status == nil {
		return u.finish(UploadResult{Index: i, DataPackage: pkg, Err: MalformedResponseError{Cause: errEmptyStatus}})
	}
	return u.finish(UploadResult{Index: i, DataPackage: pkg, Status: out.Status})
}

func (u *Uploader) finish(r UploadResult) UploadResult {
	if r.Err != nil {
		u.logger.Warn("data package upload failed", "primary_id", r.DataPackage.PrimaryID, "error", r.Err)
	} else {
		u.logger.Info("data package uploaded", "primary_id", r.DataPackage.PrimaryID, "status", r.Status.Status)
	}
	if u.onResult != nil {
		u.mu.Lock()
		u.onResult(r)
		u.mu.Unlock()
	}
	return r
}

package cmd

import (
	"context"
	"errors"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/logging"
	"github.com/etaoni/qci/ledger"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

var (
	errNoPrimaryID          = errors.New("at least one primary ID is required")
	errSecondaryIDAmbiguous = errors.New("--secondary-id can only be used with a single primary ID")
)

func (f CommandFactory) CreateUploadCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload PRIMARY_ID...",
		Short: "Upload data packages",
		Long: `Upload one data package per primary ID. Several data packages are uploaded concurrently,
and a failed upload does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errNoPrimaryID
			}
			if flgs.SecondaryID != "" && len(args) > 1 {
				return errSecondaryIDAmbiguous
			}
			ctx := context.Background()
			client, err := f.CreateQCIClient(ctx, flgs)
			if err != nil {
				return err
			}
			token, err := accessToken(ctx, client, flgs)
			if err != nil {
				return err
			}
			var store ledger.Store
			if flgs.Record {
				if store, err = f.CreateLedger(ctx, flgs); err != nil {
					return err
				}
			}
			packages := make([]qci.DataPackage, 0, len(args))
			for _, id := range args {
				packages = append(packages, qci.NewDataPackage(token, id, flgs.SecondaryID))
			}
			// Calls of the OnResult hook are serialized by the uploader.
			var recordErr *multierror.Error
			record := func(r qci.UploadResult) {
				if r.Err != nil || store == nil {
					return
				}
				if _, err := store.Record(ctx, &ledger.RecordInput{DataPackage: r.DataPackage, Status: r.Status}); err != nil {
					recordErr = multierror.Append(recordErr, errorWithID(err, r.DataPackage.PrimaryID))
				}
			}
			uploader := qci.NewUploader(client,
				qci.WithConcurrency(flgs.Concurrency),
				qci.WithOnResult(record),
				qci.WithUploaderLogger(logging.WithComponent(newLogger(flgs), "uploader")))
			out := uploader.UploadAll(ctx, packages)

			var merr *multierror.Error
			if err := out.Err(); err != nil {
				merr = multierror.Append(merr, err)
			}
			if err := recordErr.ErrorOrNil(); err != nil {
				merr = multierror.Append(merr, err)
			}
			result := UploadResult{Uploads: make([]Upload, 0, len(out.Results))}
			for _, r := range out.Results {
				u := Upload{PrimaryID: r.DataPackage.PrimaryID, Status: r.Status}
				if r.Err != nil {
					u.Error = r.Err.Error()
				}
				result.Uploads = append(result.Uploads, u)
			}
			if err := printMessageWithData(f.stdout(), "", result); err != nil {
				return err
			}
			return merr.ErrorOrNil()
		},
	}
}

type UploadResult struct {
	Uploads []Upload `json:"uploads"`
}

type Upload struct {
	PrimaryID string                `json:"primary_id"`
	Status    *qci.SubmissionStatus `json:"status,omitempty"`
	Error     string                `json:"error,omitempty"`
}

func init() {
	c := defaultCommandFactory.CreateUploadCommand(flgs)
	c.Flags().StringVar(&flgs.SecondaryID, flagMap.SecondaryID.Name, flagMap.SecondaryID.Value, flagMap.SecondaryID.Usage)
	c.Flags().IntVar(&flgs.Concurrency, flagMap.Concurrency.Name, flagMap.Concurrency.Value, flagMap.Concurrency.Usage)
	c.Flags().BoolVar(&flgs.Record, flagMap.Record.Name, flagMap.Record.Value, flagMap.Record.Usage)
	root.AddCommand(c)
}

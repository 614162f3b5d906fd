package cmd

import (
	"context"

	"github.com/etaoni/qci"
	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateStatusCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get the pipeline status of a submitted data package",
		Long:  `Get the pipeline status of a submitted data package by data package ID or accession ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				out, err := client.GetSubmissionStatus(ctx, &qci.GetSubmissionStatusInput{
					AccessToken: token,
					ID:          flgs.ID,
				})
				if err != nil {
					return nil, err
				}
				if flgs.Record {
					if err := f.updateLedger(ctx, flgs, out.Status); err != nil {
						return nil, errorWithID(err, flgs.ID)
					}
				}
				return out.Status, nil
			})
		},
	}
}

func (f CommandFactory) updateLedger(ctx context.Context, flgs *Flags, status *qci.SubmissionStatus) error {
	store, err := f.CreateLedger(ctx, flgs)
	if err != nil {
		return err
	}
	_, err = store.UpdateStatus(ctx, &ledger.UpdateStatusInput{
		ID:     ledger.DataPackageID(status),
		Status: status,
	})
	return err
}

func init() {
	c := defaultCommandFactory.CreateStatusCommand(flgs)
	setIDFlag(c, flgs)
	c.Flags().BoolVar(&flgs.Record, flagMap.Record.Name, flagMap.Record.Value, "Apply the status to the submission in the DynamoDB ledger.")
	root.AddCommand(c)
}

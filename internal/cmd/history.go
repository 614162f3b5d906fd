package cmd

import (
	"context"

	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateHistoryCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded submissions, most recently updated first",
		Long:  `List the submissions kept in the DynamoDB ledger, most recently updated first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := f.CreateLedger(ctx, flgs)
			if err != nil {
				return err
			}
			out, err := store.List(ctx, &ledger.ListInput{Size: int32(flgs.Size)})
			if err != nil {
				return err
			}
			return printMessageWithData(f.stdout(), "", HistoryResult{Entries: out.Entries})
		},
	}
}

type HistoryResult struct {
	Entries []*ledger.Entry `json:"entries"`
}

func init() {
	c := defaultCommandFactory.CreateHistoryCommand(flgs)
	c.Flags().IntVar(&flgs.Size, flagMap.Size.Name, flagMap.Size.Value, flagMap.Size.Usage)
	root.AddCommand(c)
}

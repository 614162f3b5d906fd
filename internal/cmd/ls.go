package cmd

import (
	"context"

	"github.com/etaoni/qci"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateLSCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List clinical tests",
		Long:  `List clinical tests, optionally filtered by state and received date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				out, err := client.ListTests(ctx, &qci.ListTestsInput{
					AccessToken: token,
					State:       qci.TestState(flgs.State),
					StartDate:   flgs.StartDate,
					EndDate:     flgs.EndDate,
					Sort:        qci.SortOrder(flgs.Sort),
				})
				if err != nil {
					return nil, err
				}
				return LSResult{Tests: out.Tests}, nil
			})
		},
	}
}

type LSResult struct {
	Tests []qci.TestSummary `json:"tests"`
}

func init() {
	c := defaultCommandFactory.CreateLSCommand(flgs)
	c.Flags().StringVar(&flgs.State, flagMap.State.Name, flagMap.State.Value, flagMap.State.Usage)
	c.Flags().StringVar(&flgs.StartDate, flagMap.StartDate.Name, flagMap.StartDate.Value, flagMap.StartDate.Usage)
	c.Flags().StringVar(&flgs.EndDate, flagMap.EndDate.Name, flagMap.EndDate.Value, flagMap.EndDate.Usage)
	c.Flags().StringVar(&flgs.Sort, flagMap.Sort.Name, flagMap.Sort.Value, flagMap.Sort.Usage)
	root.AddCommand(c)
}

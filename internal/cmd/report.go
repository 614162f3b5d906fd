package cmd

import (
	"context"

	"github.com/etaoni/qci"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateReportCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Download the PDF report of a test",
		Long:  `Download the PDF report of a test.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				out, err := client.GetReportPDF(ctx, &qci.GetReportPDFInput{
					AccessToken: token,
					ID:          flgs.ID,
					Filename:    flgs.Output,
				})
				if err != nil {
					return nil, err
				}
				return ReportResult{Path: out.Path, Size: out.Size}, nil
			})
		},
	}
}

type ReportResult struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

func (f CommandFactory) CreateResultCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "result",
		Short: "Get the XML result of a test",
		Long:  `Get the XML result of a test, with its patient, specimen and variant fields.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				out, err := client.GetTestResultXML(ctx, &qci.GetTestResultXMLInput{
					AccessToken: token,
					ID:          flgs.ID,
				})
				if err != nil {
					return nil, err
				}
				return out.Report, nil
			})
		},
	}
}

func (f CommandFactory) CreateProfilesCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the test product profiles",
		Long:  `List the test product profiles available to the account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				out, err := client.GetTestProductProfiles(ctx, &qci.GetTestProductProfilesInput{
					AccessToken: token,
				})
				if err != nil {
					return nil, err
				}
				return ProfilesResult{Profiles: out.Profiles}, nil
			})
		},
	}
}

type ProfilesResult struct {
	Profiles []qci.TestProductProfile `json:"profiles"`
}

func init() {
	c := defaultCommandFactory.CreateReportCommand(flgs)
	setIDFlag(c, flgs)
	c.Flags().StringVar(&flgs.Output, flagMap.Output.Name, flagMap.Output.Value, flagMap.Output.Usage)
	root.AddCommand(c)

	c = defaultCommandFactory.CreateResultCommand(flgs)
	setIDFlag(c, flgs)
	root.AddCommand(c)

	root.AddCommand(defaultCommandFactory.CreateProfilesCommand(flgs))
}

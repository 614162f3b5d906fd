package cmd

import (
	"context"

	"github.com/etaoni/qci"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateTokenCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Request an access token with the client credentials",
		Long:  `Request an access token with the client credentials.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := f.CreateQCIClient(ctx, flgs)
			if err != nil {
				return err
			}
			out, err := client.GetAccessToken(ctx, &qci.GetAccessTokenInput{
				ClientID:     flgs.ClientID,
				ClientSecret: flgs.ClientSecret,
			})
			if err != nil {
				return err
			}
			return printMessageWithData(f.stdout(), "", TokenResult{AccessToken: out.AccessToken})
		},
	}
}

type TokenResult struct {
	AccessToken string `json:"access_token"`
}

func init() {
	root.AddCommand(defaultCommandFactory.CreateTokenCommand(flgs))
}

package cmd

import (
	"context"

	"github.com/etaoni/qci"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateShareCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Share a test with other QCI users",
		Long:  `Share a test with other QCI users.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.executeQCICommand(flgs, func(ctx context.Context, client qci.Client, token string) (any, error) {
				users := make([]qci.User, 0, len(flgs.Emails))
				for _, email := range flgs.Emails {
					users = append(users, qci.User{Email: email})
				}
				out, err := client.ShareTest(ctx, &qci.ShareTestInput{
					AccessToken: token,
					ID:          flgs.ID,
					Users:       users,
				})
				if err != nil {
					return nil, err
				}
				return ShareResult{ID: flgs.ID, Users: users, Response: string(out.Body)}, nil
			})
		},
	}
}

type ShareResult struct {
	ID       string     `json:"id"`
	Users    []qci.User `json:"users"`
	Response string     `json:"response"`
}

func init() {
	c := defaultCommandFactory.CreateShareCommand(flgs)
	setIDFlag(c, flgs)
	c.Flags().StringArrayVar(&flgs.Emails, flagMap.Emails.Name, flagMap.Emails.Value, flagMap.Emails.Usage)
	root.AddCommand(c)
}

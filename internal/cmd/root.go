package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/etaoni/qci"
	"github.com/etaoni/qci/internal/logging"
	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

type CommandFactory struct {
	CreateQCIClient func(ctx context.Context, flags *Flags) (qci.Client, error)
	CreateLedger    func(ctx context.Context, flags *Flags) (ledger.Store, error)
	Stdout          io.Writer
}

var defaultCommandFactory = CommandFactory{
	CreateQCIClient: createQCIClient,
	CreateLedger:    createLedger,
	Stdout:          os.Stdout,
}

var root = defaultCommandFactory.CreateRootCommand(flgs)

func (f CommandFactory) CreateRootCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:           "qci",
		Short:         "qci is a command line client for the QIAGEN Clinical Insight REST API",
		Long:          `qci is a command line client for the QIAGEN Clinical Insight REST API.`,
		Version:       "",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func newLogger(flags *Flags) *slog.Logger {
	return logging.New(logging.Config{
		Level:  flags.LogLevel,
		Format: flags.LogFormat,
	})
}

func createQCIClient(ctx context.Context, flags *Flags) (qci.Client, error) {
	client, err := qci.NewClient(
		qci.WithBaseURL(flags.BaseURL),
		qci.WithTimeout(flags.Timeout),
		qci.WithLogger(logging.WithComponent(newLogger(flags), "client")))
	if err != nil {
		return nil, fmt.Errorf("QCI client could not be created: %w", err)
	}
	return client, nil
}

func createLedger(ctx context.Context, flags *Flags) (ledger.Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	store, err := ledger.NewFromConfig(cfg,
		ledger.WithTableName(flags.TableName),
		ledger.WithAWSBaseEndpoint(flags.EndpointURL))
	if err != nil {
		return nil, fmt.Errorf("AWS session could not be established!: %w", err)
	}
	return store, nil
}

// accessToken returns the token given on the command line, or requests one with the client credentials.
func accessToken(ctx context.Context, client qci.Client, flags *Flags) (string, error) {
	if flags.AccessToken != "" {
		return flags.AccessToken, nil
	}
	out, err := client.GetAccessToken(ctx, &qci.GetAccessTokenInput{
		ClientID:     flags.ClientID,
		ClientSecret: flags.ClientSecret,
	})
	if err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (f CommandFactory) stdout() io.Writer {
	if f.Stdout == nil {
		return io.Discard
	}
	return f.Stdout
}

// executeQCICommand creates a client, resolves the access token and prints what run returns.
func (f CommandFactory) executeQCICommand(flgs *Flags, run func(ctx context.Context, client qci.Client, token string) (any, error)) error {
	ctx := context.Background()
	client, err := f.CreateQCIClient(ctx, flgs)
	if err != nil {
		return err
	}
	token, err := accessToken(ctx, client, flgs)
	if err != nil {
		return err
	}
	out, err := run(ctx, client, token)
	if err != nil {
		return err
	}
	return printMessageWithData(f.stdout(), "", out)
}

func Execute() {
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	setPersistentFlags(root, flgs)
}

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etaoni/qci/internal/logging"
	"github.com/etaoni/qci/ledger"
	"github.com/spf13/cobra"
)

func (f CommandFactory) CreateWatchCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow recorded submissions until their pipelines finish",
		Long: `Poll the status of every unfinished submission in the DynamoDB ledger and record the changes,
until all of them are finished or the command is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			client, err := f.CreateQCIClient(ctx, flgs)
			if err != nil {
				return err
			}
			store, err := f.CreateLedger(ctx, flgs)
			if err != nil {
				return err
			}
			w := ledger.NewWatcher(client, store,
				func(ctx context.Context) (string, error) {
					return accessToken(ctx, client, flgs)
				},
				ledger.WithPollingInterval(flgs.Interval),
				ledger.WithSize(int32(flgs.Size)),
				ledger.WithLogger(logging.WithComponent(newLogger(flgs), "watcher")),
				ledger.WithOnUpdate(func(e *ledger.Entry) {
					if err := printMessageWithData(f.stdout(), "", e); err != nil {
						printError(os.Stderr, err)
					}
				}))
			err = w.Watch(ctx)
			if errors.Is(err, context.Canceled) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				return w.Shutdown(shutdownCtx)
			}
			return err
		},
	}
}

func init() {
	c := defaultCommandFactory.CreateWatchCommand(flgs)
	c.Flags().DurationVar(&flgs.Interval, flagMap.Interval.Name, flagMap.Interval.Value, flagMap.Interval.Usage)
	c.Flags().IntVar(&flgs.Size, flagMap.Size.Name, flagMap.Size.Value, flagMap.Size.Usage)
	root.AddCommand(c)
}

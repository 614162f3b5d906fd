package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/etaoni/qci"
	"github.com/etaoni/qci/ledger"
)

func main() {
	ctx := context.Background()

	// ------------------------------
	// Create QCI Client
	// ------------------------------
	client, err := qci.NewClient()
	if err != nil {
		panic("failed to create QCI client")
	}
	token, err := client.GetAccessToken(ctx, &qci.GetAccessTokenInput{
		ClientID:     os.Getenv("QCI_CLIENT_ID"),
		ClientSecret: os.Getenv("QCI_CLIENT_SECRET"),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to get access token: %v", err))
	}

	// ------------------------------
	// Create Submission Ledger
	// ------------------------------
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic("failed to load aws config")
	}
	store, err := ledger.NewFromConfig(cfg)
	if err != nil {
		panic("AWS session could not be established!")
	}

	// ------------------------------
	// Upload Data Packages
	// ------------------------------
	uploader := qci.NewUploader(client, qci.WithConcurrency(2))
	out := uploader.UploadAll(ctx, []qci.DataPackage{
		qci.NewDataPackage(token.AccessToken, "DM-121212", ""),
		qci.NewDataPackage(token.AccessToken, "DM-121213", ""),
	})
	for _, r := range out.Results {
		if r.Err != nil {
			continue
		}
		_, err := store.Record(ctx, &ledger.RecordInput{DataPackage: r.DataPackage, Status: r.Status})
		if err != nil {
			fmt.Println("failed to record submission:", err)
		}
	}
	if err := out.Err(); err != nil {
		fmt.Println(err)
	}

	// ------------------------------
	// Watch Submissions
	// ------------------------------
	watcher := ledger.NewWatcher(client, store,
		func(ctx context.Context) (string, error) {
			return token.AccessToken, nil
		},
		ledger.WithOnUpdate(func(e *ledger.Entry) {
			fmt.Printf("%s: %s %d%%\n", e.AccessionID, e.Status, e.PercentageComplete)
		}))
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			fmt.Println(err)
			return
		}
		report, err := client.GetReportPDF(ctx, &qci.GetReportPDFInput{
			AccessToken: token.AccessToken,
			ID:          "DM-121212",
		})
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println("report written to", report.Path)
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := watcher.Shutdown(ctx); err != nil {
		fmt.Println("failed to watcher shutdown:", err)
	}
}

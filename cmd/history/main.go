// Command history prints the stored room history as a table.
// Badger databases are opened read-only so it can run next to a live server.
package main

import (
	"chat-room/internal"
	"chat-room/storage"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "History dump failed: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	backend := flag.String("backend", config.StoreBackend, "Store backend to read (badger, sqlite, mongo)")
	timeout := flag.Duration("timeout", 30*time.Second, "Time allowed to read the history")
	flag.Parse()

	config.StoreBackend = *backend
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	if config.StoreBackend == storage.MEMORY {
		return exitConfig, fmt.Errorf("the memory backend keeps no history outside the server")
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := storage.Open(ctx, storage.Options{
		Backend:       config.StoreBackend,
		BadgerPath:    config.BadgerFilepath,
		SQLitePath:    config.SQLiteFilepath,
		MongoURI:      config.MongoURI,
		MongoDatabase: config.MongoDatabase,
		ReadOnly:      true,
	}, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("store opening failed: %w", err)
	}
	defer store.Close()

	messages, err := store.ListAll(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("history read failed: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Time", "User", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for i, m := range messages {
		table.Append([]string{
			strconv.Itoa(i + 1),
			m.Timestamp.Format(time.DateTime),
			m.Sender,
			m.Body,
		})
	}
	table.Render()
	fmt.Printf("%d messages in %s history\n", len(messages), config.StoreBackend)
	return exitOK, nil
}

package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zelosify/zelosify/server/internal/database"
	"github.com/zelosify/zelosify/server/pkg/logger"
)

var BuildVersion = "dev"

type rootOptions struct {
	DatabaseURL string
	LogLevel    string
	Timeout     time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "zelosifyctl",
		Short:         "Zelosify operator CLI",
		Long:          "CLI for zelosify schema migrations, sample data and TOTP enrolment.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load(".env")
			logger.Init(opts.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "Postgres connection URL. Can also be set via DATABASE_URL.")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug|info|warn|error.")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Database connect timeout.")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of zelosifyctl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
	root.AddCommand(newMigrateCommand(opts), newSeedCommand(opts), newTOTPCommand(opts))
	return root
}

func (o *rootOptions) databaseURL() (string, error) {
	u := strings.TrimSpace(o.DatabaseURL)
	if u == "" {
		u = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if u == "" {
		return "", errors.New("missing database URL: set --database-url or DATABASE_URL")
	}
	return u, nil
}

func (o *rootOptions) connect(ctx context.Context) (*pgxpool.Pool, error) {
	u, err := o.databaseURL()
	if err != nil {
		return nil, err
	}
	return database.ConnectPostgres(ctx, u, o.Timeout)
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/zelosify/zelosify/server/internal/database"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up [steps]",
		Short: "Apply pending migrations, or the given number of steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, hasSteps, err := parseSteps(args)
			if err != nil {
				return err
			}
			runner, err := newRunner(opts)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			if hasSteps {
				err = runner.Steps(steps)
			} else {
				err = runner.Up()
			}
			if isNoChange(err) {
				cmd.Println("No schema changes to apply.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			cmd.Println("Migrations applied.")
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down <steps>",
		Short: "Roll back the given number of migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _, err := parseSteps(args)
			if err != nil {
				return err
			}
			runner, err := newRunner(opts)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			if err := runner.Steps(-steps); err != nil {
				if isNoChange(err) {
					cmd.Println("No schema changes to roll back.")
					return nil
				}
				return fmt.Errorf("rollback migrations: %w", err)
			}
			cmd.Printf("Rolled back %d migration step(s).\n", steps)
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner(opts)
			if err != nil {
				return err
			}
			defer closeRunner(cmd, runner)

			version, dirty, err := runner.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				cmd.Println("No migrations applied.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			cmd.Printf("version=%d dirty=%v\n", version, dirty)
			return nil
		},
	})

	return migrateCmd
}

func newRunner(opts *rootOptions) (*migrate.Migrate, error) {
	u, err := opts.databaseURL()
	if err != nil {
		return nil, err
	}
	return database.NewMigrator(u)
}

func closeRunner(cmd *cobra.Command, runner *migrate.Migrate) {
	srcErr, dbErr := runner.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		cmd.PrintErrf("warning: failed to close migration runner cleanly: %v\n", err)
	}
}

func parseSteps(args []string) (int, bool, error) {
	if len(args) == 0 {
		return 0, false, nil
	}
	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || steps <= 0 {
		return 0, false, fmt.Errorf("invalid migration steps %q: expected a positive integer", args[0])
	}
	return steps, true, nil
}

// isNoChange also covers the bare os.ErrNotExist golang-migrate returns when
// a step command runs past the first or last migration.
func isNoChange(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist)
}

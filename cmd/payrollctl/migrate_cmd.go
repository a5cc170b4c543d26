package main

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/haulpay/payroll-sdk/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Migrate the database to the latest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoose(cmd.Context(), goose.UpContext)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoose(cmd.Context(), goose.DownContext)
		},
	})

	return cmd
}

func runGoose(ctx context.Context, direction func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error) error {
	conf := configuration.Use()

	db, err := sql.Open("pgx", conf.Database.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return direction(ctx, db, conf.MigrationsDir)
}

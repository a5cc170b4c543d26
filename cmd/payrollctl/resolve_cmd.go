package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/haulpay/payroll-sdk/modules/payroll"
	"github.com/haulpay/payroll-sdk/pkg/composables"
	"github.com/haulpay/payroll-sdk/pkg/configuration"
)

func newResolveCmd() *cobra.Command {
	var subject string
	var asOf string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the configuration in force for an employee on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := uuid.Parse(strings.TrimSpace(subject))
			if err != nil {
				return fmt.Errorf("invalid --subject: %w", err)
			}
			date := time.Now().UTC()
			if strings.TrimSpace(asOf) != "" {
				date, err = time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			ctx, mod, cleanup, err := openModule(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			cfg, err := mod.Resolver.Resolve(ctx, subjectID, date)
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Employee UUID (required)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Date (YYYY-MM-DD), defaults to today")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print an employee's configuration history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := uuid.Parse(strings.TrimSpace(subject))
			if err != nil {
				return fmt.Errorf("invalid --subject: %w", err)
			}

			ctx, mod, cleanup, err := openModule(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := mod.Resolver.History(ctx, subjectID)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Employee UUID (required)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func openModule(ctx context.Context) (context.Context, *payroll.Module, func(), error) {
	conf := configuration.Use()
	pool, err := pgxpool.New(ctx, conf.Database.DSN())
	if err != nil {
		return nil, nil, nil, err
	}
	ctx = composables.WithPool(ctx, pool)
	return ctx, payroll.NewModule(ctx, conf.Logger()), pool.Close, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haulpay/payroll-sdk/pkg/configuration"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and maintain the configuration audit trail",
	}

	cmd.AddCommand(newAuditRecentCmd())
	cmd.AddCommand(newAuditSessionCmd())
	cmd.AddCommand(newAuditPurgeCmd())
	return cmd
}

func newAuditRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, mod, cleanup, err := openModule(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := mod.Audit.RecentLogs(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	return cmd
}

func newAuditSessionCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print every audit entry produced by one change operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := uuid.Parse(strings.TrimSpace(session))
			if err != nil {
				return fmt.Errorf("invalid --session: %w", err)
			}

			ctx, mod, cleanup, err := openModule(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := mod.Audit.LogsForSession(ctx, sessionID)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Session UUID (required)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newAuditPurgeCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete audit entries older than the cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()

			cutoff := time.Now().UTC().AddDate(0, 0, -conf.Audit.RetentionDays)
			if strings.TrimSpace(olderThan) != "" {
				parsed, err := time.Parse(time.DateOnly, olderThan)
				if err != nil {
					return fmt.Errorf("invalid --older-than: %w", err)
				}
				cutoff = parsed
			}

			ctx, mod, cleanup, err := openModule(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := mod.Audit.PurgeOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d audit entries older than %s\n", count, cutoff.Format(time.DateOnly))
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "Cutoff date (YYYY-MM-DD); defaults to the configured retention window")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/duckbot/internal/auth"
	"github.com/tbourn/duckbot/internal/repo"
	"github.com/tbourn/duckbot/internal/services"
)

func newStatsCmd(a *app) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the usage summary of a tenant",
		Long:  `Aggregates stored turns of one tenant, excluding ADMIN_USER_IDS, and prints the result as JSON.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireTenant(tenant); err != nil {
				return err
			}
			db, closeFn, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			svc := &services.StatsService{DB: db, Admins: a.cfg.Admin.UserIDs}
			s, err := svc.Summary(cmd.Context(), tenant)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "duck", "tenant id")
	return cmd
}

func newQueriesCmd(a *app) *cobra.Command {
	var (
		tenant string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "queries",
		Short: "List the newest user messages of a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireTenant(tenant); err != nil {
				return err
			}
			db, closeFn, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			svc := &services.StatsService{DB: db, Admins: a.cfg.Admin.UserIDs}
			qs, err := svc.RecentQueries(cmd.Context(), tenant, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(qs) == 0 {
				fmt.Fprintln(out, "no queries recorded")
				return nil
			}
			for i, q := range qs {
				fmt.Fprintf(out, "%d. [%s] %s: %s\n", i+1, q.At.Format("2006-01-02 15:04"), q.UserName, oneLine(q.Message))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "duck", "tenant id")
	cmd.Flags().IntVar(&limit, "limit", 10, "how many messages to list (1..100)")
	return cmd
}

func newPurgeUserCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "purge-user",
		Short: "Delete every stored turn recorded under a display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			db, closeFn, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := repo.DeleteByUserName(cmd.Context(), db, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d turns for %q\n", n, name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name exactly as stored")
	return cmd
}

func newAdminTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a bearer token for the admin API",
		Long:  `Signs a token with ADMIN_JWT_SECRET. The subject must be listed in ADMIN_USER_IDS or the API will answer 403.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Admin.JWTSecret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}
			if !slices.Contains(a.cfg.Admin.UserIDs, subject) {
				return fmt.Errorf("%q is not in ADMIN_USER_IDS", subject)
			}
			tok, err := auth.IssueAdminToken(subject, a.cfg.Admin.JWTSecret, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "admin Slack user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

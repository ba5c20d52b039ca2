package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/auth"
	"github.com/phrazzld/deckgen-api/internal/platform/postgres"
	"github.com/phrazzld/deckgen-api/internal/task"
	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := c.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := postgres.Migrate(cmd.Context(), db, args[0], c.logger()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s completed\n", args[0])
			return nil
		},
	}
}

func (c *cli) newReconcileCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Fail pending or processing tasks that stopped reporting progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := c.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			age := cfg.Task.StuckTaskAge
			if olderThan > 0 {
				age = olderThan
			}

			log := c.logger()
			reconciler, err := task.NewReconciler(postgres.NewPostgresTaskStore(db, log), task.ReconcilerConfig{
				StuckTaskAge:   age,
				StagingBaseDir: cfg.Staging.BaseDir,
			}, log)
			if err != nil {
				return err
			}

			failed, err := reconciler.ReconcileOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failed %d stale task(s) older than %s\n", failed, age)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "staleness threshold (defaults to task.stuck_task_age)")
	return cmd
}

func (c *cli) newTasksCmd() *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect deck generation tasks",
	}

	var owner string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}

			db, _, err := c.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tasks, err := postgres.NewPostgresTaskStore(db, c.logger()).ListByOwner(cmd.Context(), ownerID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSTAGE\tUPDATED\tTITLE")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					t.ID, t.Status, t.Progress, t.Stage, t.UpdatedAt.Format(time.RFC3339), t.Title)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&owner, "owner", "", "owner ID")
	_ = listCmd.MarkFlagRequired("owner")

	getCmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Print one task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task ID: %w", err)
			}

			db, _, err := c.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			t, err := postgres.NewPostgresTaskStore(db, c.logger()).GetByID(cmd.Context(), taskID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		},
	}

	tasksCmd.AddCommand(listCmd, getCmd)
	return tasksCmd
}

func (c *cli) newTokenCmd() *cobra.Command {
	var (
		user     string
		secret   string
		lifetime time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if secret != "" {
				cfg.Auth.JWTSecret = secret
			}
			if lifetime > 0 {
				cfg.Auth.TokenLifetime = lifetime
			}

			userID := uuid.New()
			if user != "" {
				if userID, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "user: %s\n", userID)
			}

			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID to embed (random when empty)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (overrides DECKGEN_AUTH_JWT_SECRET)")
	cmd.Flags().DurationVar(&lifetime, "lifetime", 0, "token lifetime (defaults to auth.token_lifetime)")
	return cmd
}


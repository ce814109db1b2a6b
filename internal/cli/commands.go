package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/store"
)

func newCommandsCommand() *cobra.Command {
	var guild string
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Inspect and edit a guild's trigger commands in the local store",
	}
	cmd.PersistentFlags().StringVar(&guild, "guild", "", "guild id")

	list := &cobra.Command{
		Use:   "list",
		Short: "List a guild's commands, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, _ := cmd.Flags().GetString("query")
			return withStore(cmd.Context(), func(ctx context.Context, cfg config.Config, sqlStore *store.Store) error {
				guildID, err := parseGuildFlag(guild)
				if err != nil {
					return err
				}
				var commands []store.Command
				if strings.TrimSpace(query) == "" {
					commands, err = sqlStore.ListCommands(ctx, guildID)
				} else {
					commands, err = sqlStore.SearchCommands(ctx, guildID, query)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(commands) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("no commands"))
					return nil
				}
				rows := make([][]string, 0, len(commands))
				for _, command := range commands {
					rows = append(rows, []string{
						cfg.TriggerPrefix + command.Name,
						command.Response,
						command.UpdatedAt.UTC().Format("2006-01-02 15:04"),
					})
				}
				writeTable(out, []string{"TRIGGER", "RESPONSE", "UPDATED"}, rows)
				return nil
			})
		},
	}
	list.Flags().String("query", "", "case-insensitive substring of name or response")

	add := &cobra.Command{
		Use:   "add <name> <response>",
		Short: "Add a command",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg config.Config, sqlStore *store.Store) error {
				guildID, err := parseGuildFlag(guild)
				if err != nil {
					return err
				}
				name := strings.TrimSpace(args[0])
				response := strings.Join(args[1:], " ")
				if err := sqlStore.AddCommand(ctx, guildID, name, response); err != nil {
					if errors.Is(err, store.ErrCommandExists) {
						return fmt.Errorf("%s%s already exists", cfg.TriggerPrefix, name)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("added "+cfg.TriggerPrefix+name))
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <name>...",
		Short: "Remove one or more commands",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg config.Config, sqlStore *store.Store) error {
				guildID, err := parseGuildFlag(guild)
				if err != nil {
					return err
				}
				removed, err := sqlStore.RemoveCommands(ctx, guildID, args)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("removed %d of %d", removed, len(args))))
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func withStore(ctx context.Context, run func(context.Context, config.Config, *store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlStore.Close()
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		return err
	}
	return run(ctx, cfg, sqlStore)
}

func parseGuildFlag(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("--guild is required")
	}
	guildID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || guildID <= 0 {
		return 0, fmt.Errorf("invalid guild id %q", raw)
	}
	return guildID, nil
}

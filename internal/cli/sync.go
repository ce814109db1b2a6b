package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/connectors/discord"
)

func newSyncCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [guild-id...]",
		Short: "Replace the slash commands registered in each guild once",
		Long:  "Replace the slash commands registered in each guild once. Without arguments the configured command guilds are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.DiscordToken == "" {
				return fmt.Errorf("TRIGGERBOT_DISCORD_TOKEN is required")
			}
			guildIDs := args
			if len(guildIDs) == 0 {
				guildIDs = cfg.DiscordCommandGuildIDs
			}
			if len(guildIDs) == 0 {
				return fmt.Errorf("no guild ids given")
			}
			connector := discord.New(
				cfg.DiscordToken,
				cfg.DiscordAPIBase,
				cfg.DiscordGatewayURL,
				nil,
				logger.With("connector", "discord"),
				discord.WithApplicationID(cfg.DiscordApplicationID),
			)
			return runSync(cmd, commandsync.New(connector, logger), guildIDs)
		},
	}
}

func runSync(cmd *cobra.Command, manager *commandsync.Manager, guildIDs []string) error {
	results := manager.ReconcileAll(cmd.Context(), guildIDs)
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, result := range results {
		status := okStyle.Render("ok")
		detail := fmt.Sprintf("%d commands", result.Commands)
		if result.Err != nil {
			failed++
			status = errStyle.Render("failed")
			detail = result.Err.Error()
		}
		rows = append(rows, []string{result.GuildID, status, detail})
	}
	writeTable(cmd.OutOrStdout(), []string{"GUILD", "STATUS", "DETAIL"}, rows)
	if failed > 0 {
		return fmt.Errorf("%d of %d guild(s) failed: %s", failed, len(results), strings.Join(failedGuilds(results), ", "))
	}
	return nil
}

func failedGuilds(results []commandsync.Result) []string {
	ids := []string{}
	for _, result := range results {
		if result.Err != nil {
			ids = append(ids, result.GuildID)
		}
	}
	return ids
}

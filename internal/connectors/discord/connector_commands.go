package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dwizi/triggerbot/internal/boterr"
	"github.com/dwizi/triggerbot/internal/capture"
	"github.com/dwizi/triggerbot/internal/gateway"
	"github.com/dwizi/triggerbot/internal/store"
)

const commandFailedReply = "I hit an error while running that command."

// ReplaceGuildCommands overwrites the guild's application commands with
// commands in a single bulk request.
func (c *Connector) ReplaceGuildCommands(ctx context.Context, guildID string, commands []gateway.SlashCommand) error {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return fmt.Errorf("discord guild id is required")
	}
	applicationID, err := c.resolveApplicationID(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/applications/%s/guilds/%s/commands", c.apiBase, applicationID, guildID)
	return c.call(ctx, "command overwrite", http.MethodPut, endpoint, buildDiscordCommandPayload(commands), true, nil)
}

func (c *Connector) resolveApplicationID(ctx context.Context) (string, error) {
	if applicationID := c.currentApplicationID(); applicationID != "" {
		return applicationID, nil
	}
	applicationID, err := c.fetchApplicationID(ctx)
	if err != nil {
		return "", err
	}
	c.setApplicationID(applicationID)
	return c.currentApplicationID(), nil
}

func (c *Connector) fetchApplicationID(ctx context.Context) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/oauth2/applications/@me", c.apiBase)
	if err := c.call(ctx, "application lookup", http.MethodGet, endpoint, nil, true, &payload); err != nil {
		return "", err
	}
	applicationID := strings.TrimSpace(payload.ID)
	if applicationID == "" {
		return "", fmt.Errorf("discord application lookup returned empty id")
	}
	return applicationID, nil
}

func buildDiscordCommandPayload(commands []gateway.SlashCommand) []map[string]any {
	payload := make([]map[string]any, 0, len(commands))
	for _, command := range commands {
		name := strings.TrimSpace(command.Name)
		if name == "" {
			continue
		}
		entry := map[string]any{
			"name":          name,
			"type":          applicationCommandChatInput,
			"dm_permission": false,
		}
		if command.Kind == gateway.CommandKindMessage {
			entry["type"] = applicationCommandMessage
			payload = append(payload, entry)
			continue
		}
		entry["description"] = discordCommandDescription(command.Description)
		if len(command.Options) > 0 {
			options := make([]map[string]any, 0, len(command.Options))
			for _, option := range command.Options {
				item := map[string]any{
					"type":        optionTypeString,
					"name":        option.Name,
					"description": discordCommandDescription(option.Description),
					"required":    option.Required,
				}
				if option.MaxLength > 0 {
					item["min_length"] = 1
					item["max_length"] = option.MaxLength
				}
				options = append(options, item)
			}
			entry["options"] = options
		}
		payload = append(payload, entry)
	}
	return payload
}

func discordCommandDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "Trigger bot command"
	}
	if len(trimmed) > 100 {
		return strings.TrimSpace(trimmed[:100])
	}
	return trimmed
}

func (c *Connector) handleInteractionCreate(ctx context.Context, interaction discordInteractionCreate) error {
	c.setApplicationID(interaction.ApplicationID)
	switch interaction.Type {
	case interactionTypeApplicationCommand:
		if interaction.Data.Type == applicationCommandMessage {
			return c.handleCaptureAction(ctx, interaction)
		}
		return c.handleSlashCommand(ctx, interaction)
	case interactionTypeModalSubmit:
		return c.handleModalSubmit(ctx, interaction)
	default:
		return nil
	}
}

func (c *Connector) handleSlashCommand(ctx context.Context, interaction discordInteractionCreate) error {
	name := strings.TrimSpace(interaction.Data.Name)
	if name == "" {
		return c.sendInteractionResponse(ctx, interaction, "Unsupported command payload.")
	}
	output, err := c.gateway.HandleCommand(ctx, gateway.CommandInput{
		Connector:  "discord",
		GuildID:    parseGuildID(interaction.GuildID),
		ChannelID:  strings.TrimSpace(interaction.ChannelID),
		FromUserID: interaction.userID(),
		Command:    name,
		Options:    interaction.options(),
	})
	if err != nil {
		c.logger.Error("command failed", "error", err, "guild_id", interaction.GuildID, "command", name)
		return c.sendInteractionResponse(ctx, interaction, commandFailedReply)
	}
	if !output.Handled || len(output.Replies) == 0 {
		return c.sendInteractionResponse(ctx, interaction, "Unsupported command.")
	}
	return c.sendReplies(ctx, interaction, output.Replies)
}

// sendReplies answers the interaction with the first reply and sends the
// rest as follow-up messages, in order.
func (c *Connector) sendReplies(ctx context.Context, interaction discordInteractionCreate, replies []string) error {
	if err := c.sendInteractionResponse(ctx, interaction, replies[0]); err != nil {
		return err
	}
	for _, reply := range replies[1:] {
		if err := c.sendFollowup(ctx, interaction, reply); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) handleCaptureAction(ctx context.Context, interaction discordInteractionCreate) error {
	if c.capture == nil || interaction.Data.Name != gateway.CaptureCommandName {
		return c.sendInteractionResponse(ctx, interaction, "Unsupported command.")
	}
	form, err := c.capture.Begin(capture.MessageRef{
		GuildID:   parseGuildID(interaction.GuildID),
		ChannelID: strings.TrimSpace(interaction.ChannelID),
		MessageID: strings.TrimSpace(interaction.Data.TargetID),
	})
	if errors.Is(err, boterr.ErrNoGuildContext) {
		return c.sendInteractionResponse(ctx, interaction, "Commands can only be captured inside a server.")
	}
	if err != nil {
		return c.sendInteractionResponse(ctx, interaction, "Could not start the capture for that message.")
	}
	return c.sendInteractionModal(ctx, interaction, form)
}

func (c *Connector) handleModalSubmit(ctx context.Context, interaction discordInteractionCreate) error {
	customID := strings.TrimSpace(interaction.Data.CustomID)
	if c.capture == nil || !capture.IsCaptureCustomID(customID) {
		return nil
	}
	outcome, err := c.capture.Complete(ctx, capture.Scope{
		GuildID:   parseGuildID(interaction.GuildID),
		ChannelID: strings.TrimSpace(interaction.ChannelID),
	}, customID, interaction.componentValue(capture.FieldName))
	if err != nil && !expectedCaptureError(err) {
		c.logger.Error("capture failed", "error", err, "guild_id", interaction.GuildID, "command", outcome.Name)
	}
	reply := outcome.Reply
	if reply == "" {
		reply = commandFailedReply
	}
	return c.sendInteractionResponse(ctx, interaction, reply)
}

func expectedCaptureError(err error) bool {
	return errors.Is(err, store.ErrCommandExists) ||
		errors.Is(err, store.ErrInvalidCommand) ||
		errors.Is(err, capture.ErrMessageNotFound) ||
		errors.Is(err, capture.ErrEmptyMessage) ||
		errors.Is(err, capture.ErrInvalidToken) ||
		errors.Is(err, boterr.ErrNoGuildContext)
}

func (c *Connector) sendInteractionResponse(ctx context.Context, interaction discordInteractionCreate, content string) error {
	c.warnOversized(content, "guild_id", interaction.GuildID, "command", interaction.Data.Name)
	return c.sendInteractionCallback(ctx, interaction, map[string]any{
		"type": callbackChannelMessage,
		"data": map[string]any{
			"content": content,
		},
	})
}

func (c *Connector) sendInteractionModal(ctx context.Context, interaction discordInteractionCreate, form capture.Form) error {
	return c.sendInteractionCallback(ctx, interaction, map[string]any{
		"type": callbackModal,
		"data": map[string]any{
			"custom_id": form.CustomID,
			"title":     form.Title,
			"components": []map[string]any{
				{
					"type": componentActionRow,
					"components": []map[string]any{
						{
							"type":       componentTextInput,
							"custom_id":  form.FieldID,
							"label":      form.FieldLabel,
							"style":      textInputShort,
							"min_length": form.MinLength,
							"max_length": form.MaxLength,
							"required":   true,
						},
					},
				},
			},
		},
	})
}

func (c *Connector) sendInteractionCallback(ctx context.Context, interaction discordInteractionCreate, body map[string]any) error {
	if strings.TrimSpace(interaction.ID) == "" || strings.TrimSpace(interaction.Token) == "" {
		return fmt.Errorf("missing interaction id or token")
	}
	endpoint := fmt.Sprintf("%s/interactions/%s/%s/callback", c.apiBase, interaction.ID, interaction.Token)
	return c.call(ctx, "interaction response", http.MethodPost, endpoint, body, false, nil)
}

func (c *Connector) sendFollowup(ctx context.Context, interaction discordInteractionCreate, content string) error {
	applicationID := strings.TrimSpace(interaction.ApplicationID)
	if applicationID == "" {
		resolved, err := c.resolveApplicationID(ctx)
		if err != nil {
			return err
		}
		applicationID = resolved
	}
	c.warnOversized(content, "guild_id", interaction.GuildID, "command", interaction.Data.Name)
	endpoint := fmt.Sprintf("%s/webhooks/%s/%s", c.apiBase, applicationID, interaction.Token)
	return c.call(ctx, "follow-up message", http.MethodPost, endpoint, map[string]any{
		"content": content,
	}, false, nil)
}

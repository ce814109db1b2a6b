package discord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	interactionTypeApplicationCommand = 2
	interactionTypeModalSubmit        = 5

	applicationCommandChatInput = 1
	applicationCommandMessage   = 3

	callbackChannelMessage = 4
	callbackModal          = 9

	componentActionRow = 1
	componentTextInput = 4
	textInputShort     = 1

	optionTypeString = 3

	maxMessageChars = 2000
)

// warnOversized logs content the API will reject for length. The content is
// sent unchanged so the failure surfaces instead of a silently cut reply.
func (c *Connector) warnOversized(content string, attrs ...any) {
	length := utf8.RuneCountInString(content)
	if length <= maxMessageChars {
		return
	}
	fields := append([]any{"chars", length, "limit", maxMessageChars}, attrs...)
	c.logger.Warn("reply exceeds discord message limit", fields...)
}

func parseGuildID(value string) int64 {
	guildID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return guildID
}

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User        discordAuthor      `json:"user"`
	Guilds      []discordGuild     `json:"guilds"`
	Application discordApplication `json:"application"`
}

type discordApplication struct {
	ID string `json:"id"`
}

type discordGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

type discordMessageCreate struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	GuildID     string              `json:"guild_id"`
	Content     string              `json:"content"`
	Author      discordAuthor       `json:"author"`
	Attachments []discordAttachment `json:"attachments"`
}

type discordMessage struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	Content     string              `json:"content"`
	Attachments []discordAttachment `json:"attachments"`
}

type discordInteractionCreate struct {
	ID            string                   `json:"id"`
	ApplicationID string                   `json:"application_id"`
	Type          int                      `json:"type"`
	Token         string                   `json:"token"`
	ChannelID     string                   `json:"channel_id"`
	GuildID       string                   `json:"guild_id"`
	Data          discordInteractionData   `json:"data"`
	Member        discordInteractionMember `json:"member"`
	User          discordAuthor            `json:"user"`
}

func (interaction discordInteractionCreate) userID() string {
	if strings.TrimSpace(interaction.Member.User.ID) != "" {
		return strings.TrimSpace(interaction.Member.User.ID)
	}
	return strings.TrimSpace(interaction.User.ID)
}

// options flattens top-level option values by name.
func (interaction discordInteractionCreate) options() map[string]string {
	values := make(map[string]string, len(interaction.Data.Options))
	for _, option := range interaction.Data.Options {
		values[option.Name] = option.valueAsString()
	}
	return values
}

// componentValue finds a submitted text input by its custom id.
func (interaction discordInteractionCreate) componentValue(customID string) string {
	for _, row := range interaction.Data.Components {
		for _, component := range row.Components {
			if component.CustomID == customID {
				return component.Value
			}
		}
	}
	return ""
}

type discordInteractionData struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Type       int                        `json:"type"`
	TargetID   string                     `json:"target_id"`
	CustomID   string                     `json:"custom_id"`
	Options    []discordInteractionOption `json:"options"`
	Components []discordActionRow         `json:"components"`
}

type discordActionRow struct {
	Type       int                `json:"type"`
	Components []discordComponent `json:"components"`
}

type discordComponent struct {
	Type     int    `json:"type"`
	CustomID string `json:"custom_id"`
	Value    string `json:"value"`
}

type discordInteractionOption struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value any    `json:"value"`
}

func (option discordInteractionOption) valueAsString() string {
	if option.Value == nil {
		return ""
	}
	switch value := option.Value.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

type discordInteractionMember struct {
	User discordAuthor `json:"user"`
}

type discordAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type discordAttachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dwizi/triggerbot/internal/capture"
	"github.com/dwizi/triggerbot/internal/gateway"
)

func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) error {
	if message.Author.Bot {
		return nil
	}
	guildID := parseGuildID(message.GuildID)
	if guildID == 0 {
		return nil
	}
	output, err := c.gateway.HandleMessage(ctx, gateway.MessageInput{
		Connector:  "discord",
		GuildID:    guildID,
		ChannelID:  message.ChannelID,
		FromUserID: message.Author.ID,
		Text:       message.Content,
	})
	if err != nil {
		return err
	}
	if !output.Handled {
		return nil
	}
	for _, reply := range output.Replies {
		c.warnOversized(reply, "guild_id", message.GuildID, "channel_id", message.ChannelID, "message_id", message.ID)
		if err := c.sendChannelMessage(ctx, message.ChannelID, reply); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) sendChannelMessage(ctx context.Context, channelID, content string) error {
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	return c.call(ctx, "send message", http.MethodPost, endpoint, map[string]string{
		"content": content,
	}, true, nil)
}

// FetchMessage reads a message for the capture flow. A message that is gone
// or hidden from the bot reports capture.ErrMessageNotFound.
func (c *Connector) FetchMessage(ctx context.Context, channelID, messageID string) (capture.Message, error) {
	channelID = strings.TrimSpace(channelID)
	messageID = strings.TrimSpace(messageID)
	if channelID == "" || messageID == "" {
		return capture.Message{}, capture.ErrMessageNotFound
	}
	var message discordMessage
	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s", c.apiBase, channelID, messageID)
	err := c.call(ctx, "get message", http.MethodGet, endpoint, nil, true, &message)
	switch statusOf(err) {
	case http.StatusNotFound, http.StatusForbidden:
		return capture.Message{}, fmt.Errorf("%w: %v", capture.ErrMessageNotFound, err)
	}
	if err != nil {
		return capture.Message{}, err
	}
	urls := make([]string, 0, len(message.Attachments))
	for _, attachment := range message.Attachments {
		urls = append(urls, attachment.URL)
	}
	return capture.Message{Content: message.Content, AttachmentURLs: urls}, nil
}

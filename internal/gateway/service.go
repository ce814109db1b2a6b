package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/triggerbot/internal/chunker"
	"github.com/dwizi/triggerbot/internal/store"
)

const DefaultMaxReplyChars = 2000

type Store interface {
	CommandLookup
	AddCommand(ctx context.Context, guildID int64, name, response string) error
	UpdateCommand(ctx context.Context, guildID int64, name, response string) error
	RemoveCommand(ctx context.Context, guildID int64, name string) error
	ListCommands(ctx context.Context, guildID int64) ([]store.Command, error)
	SearchCommands(ctx context.Context, guildID int64, substring string) ([]store.Command, error)
}

type Config struct {
	TriggerPrefix string
	MaxReplyChars int
}

type Service struct {
	store         Store
	triggers      *TriggerResolver
	maxReplyChars int
}

// MessageInput is a plain chat message seen by the bot.
type MessageInput struct {
	Connector  string
	GuildID    int64
	ChannelID  string
	FromUserID string
	Text       string
}

// CommandInput is an invoked structured command with its option values.
type CommandInput struct {
	Connector  string
	GuildID    int64
	ChannelID  string
	FromUserID string
	Command    string
	Options    map[string]string
}

// MessageOutput carries the replies in send order. For an interaction the
// first reply answers it and the rest go out as follow-ups.
type MessageOutput struct {
	Handled bool
	Replies []string
}

func New(store Store, cfg Config) *Service {
	maxReplyChars := cfg.MaxReplyChars
	if maxReplyChars <= 0 {
		maxReplyChars = DefaultMaxReplyChars
	}
	return &Service{
		store:         store,
		triggers:      NewTriggerResolver(store, cfg.TriggerPrefix),
		maxReplyChars: maxReplyChars,
	}
}

// HandleMessage answers trigger messages. Anything else is left unhandled.
func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (MessageOutput, error) {
	if input.GuildID == 0 {
		return MessageOutput{}, nil
	}
	response, ok, err := s.triggers.Resolve(ctx, input.GuildID, input.Text)
	if err != nil {
		return MessageOutput{}, err
	}
	if !ok {
		return MessageOutput{}, nil
	}
	replies := chunker.Lines(response, s.maxReplyChars)
	if len(replies) == 0 {
		return MessageOutput{}, nil
	}
	return MessageOutput{Handled: true, Replies: replies}, nil
}

// HandleCommand runs one structured command. Expected outcomes such as a
// duplicate or missing name become replies; only storage failures are
// returned as errors.
func (s *Service) HandleCommand(ctx context.Context, input CommandInput) (MessageOutput, error) {
	command := strings.ToLower(strings.TrimSpace(input.Command))
	if !IsSlashCommand(command) {
		return MessageOutput{}, nil
	}
	if input.GuildID == 0 {
		return reply("Trigger commands only work inside a server."), nil
	}

	switch command {
	case CommandAdd:
		return s.handleAdd(ctx, input)
	case CommandUpdate:
		return s.handleUpdate(ctx, input)
	case CommandRemove:
		return s.handleRemove(ctx, input)
	case CommandList:
		return s.handleList(ctx, input)
	case CommandSearch:
		return s.handleSearch(ctx, input)
	default:
		return MessageOutput{}, nil
	}
}

func (s *Service) handleAdd(ctx context.Context, input CommandInput) (MessageOutput, error) {
	name := store.NormalizeName(input.Options[OptionName])
	response := input.Options[OptionResponse]
	if strings.TrimSpace(response) == "" {
		return reply("Usage: /add <name> <response>"), nil
	}
	err := s.store.AddCommand(ctx, input.GuildID, name, response)
	switch {
	case err == nil:
		return reply(fmt.Sprintf("Added `%s`.", s.trigger(name))), nil
	case errors.Is(err, store.ErrCommandExists):
		return reply(fmt.Sprintf("`%s` already exists. Use /update to change it.", s.trigger(name))), nil
	case errors.Is(err, store.ErrInvalidCommand):
		return reply(invalidNameReply()), nil
	default:
		return MessageOutput{}, err
	}
}

func (s *Service) handleUpdate(ctx context.Context, input CommandInput) (MessageOutput, error) {
	name := store.NormalizeName(input.Options[OptionName])
	response := input.Options[OptionResponse]
	if strings.TrimSpace(response) == "" {
		return reply("Usage: /update <name> <response>"), nil
	}
	err := s.store.UpdateCommand(ctx, input.GuildID, name, response)
	switch {
	case err == nil:
		return reply(fmt.Sprintf("Updated `%s`.", s.trigger(name))), nil
	case errors.Is(err, store.ErrCommandNotFound):
		return reply(fmt.Sprintf("`%s` does not exist.", s.trigger(name))), nil
	case errors.Is(err, store.ErrInvalidCommand):
		return reply(invalidNameReply()), nil
	default:
		return MessageOutput{}, err
	}
}

func (s *Service) handleRemove(ctx context.Context, input CommandInput) (MessageOutput, error) {
	name := store.NormalizeName(input.Options[OptionName])
	err := s.store.RemoveCommand(ctx, input.GuildID, name)
	switch {
	case err == nil:
		return reply(fmt.Sprintf("Removed `%s`.", s.trigger(name))), nil
	case errors.Is(err, store.ErrCommandNotFound):
		return reply(fmt.Sprintf("`%s` does not exist.", s.trigger(name))), nil
	default:
		return MessageOutput{}, err
	}
}

func (s *Service) handleList(ctx context.Context, input CommandInput) (MessageOutput, error) {
	commands, err := s.store.ListCommands(ctx, input.GuildID)
	if err != nil {
		return MessageOutput{}, err
	}
	if len(commands) == 0 {
		return reply("No commands are registered yet."), nil
	}
	return MessageOutput{Handled: true, Replies: s.listing(commands)}, nil
}

func (s *Service) handleSearch(ctx context.Context, input CommandInput) (MessageOutput, error) {
	query := strings.TrimSpace(input.Options[OptionQuery])
	if query == "" {
		return reply("Usage: /search <query>"), nil
	}
	commands, err := s.store.SearchCommands(ctx, input.GuildID, query)
	if err != nil {
		return MessageOutput{}, err
	}
	if len(commands) == 0 {
		return reply(fmt.Sprintf("No commands match `%s`.", query)), nil
	}
	return MessageOutput{Handled: true, Replies: s.listing(commands)}, nil
}

func (s *Service) listing(commands []store.Command) []string {
	entries := make([]string, 0, len(commands))
	for _, command := range commands {
		entries = append(entries, fmt.Sprintf("%s: %s", s.trigger(command.Name), command.Response))
	}
	return chunker.Chunk(entries, s.maxReplyChars, "\n")
}

func (s *Service) trigger(name string) string {
	return s.triggers.Prefix() + name
}

func invalidNameReply() string {
	return fmt.Sprintf("Command names must be 1 to %d characters.", store.MaxCommandNameLength)
}

func reply(text string) MessageOutput {
	return MessageOutput{Handled: true, Replies: []string{text}}
}

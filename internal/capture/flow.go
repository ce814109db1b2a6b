// Package capture turns an existing chat message into a stored command in two
// steps: a context-menu action opens a name prompt, and the submitted prompt
// commits the message text under that name.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dwizi/triggerbot/internal/boterr"
	"github.com/dwizi/triggerbot/internal/store"
)

const (
	CustomIDPrefix = "capture:"
	FieldName      = "name"
)

var (
	ErrInvalidToken    = errors.New("invalid capture token")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message has no text or attachments")
)

type Message struct {
	Content        string
	AttachmentURLs []string
}

type MessageFetcher interface {
	// FetchMessage returns ErrMessageNotFound when the message is gone or
	// not visible to the bot.
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
}

type Store interface {
	AddCommand(ctx context.Context, guildID int64, name, response string) error
}

// Form is the name prompt shown to the user.
type Form struct {
	CustomID   string
	Title      string
	FieldID    string
	FieldLabel string
	MinLength  int
	MaxLength  int
}

type State string

const (
	StateCommitted State = "committed"
	StateDuplicate State = "duplicate"
	StateRejected  State = "rejected"
	StateAbandoned State = "abandoned"
)

type Outcome struct {
	State    State
	Name     string
	Response string
	Reply    string
}

type Flow struct {
	store   Store
	fetcher MessageFetcher
	secret  []byte
	prefix  string
	logger  *slog.Logger
}

func NewFlow(store Store, fetcher MessageFetcher, secret []byte, triggerPrefix string, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	if triggerPrefix == "" {
		triggerPrefix = "!"
	}
	return &Flow{
		store:   store,
		fetcher: fetcher,
		secret:  secret,
		prefix:  triggerPrefix,
		logger:  logger,
	}
}

// IsCaptureCustomID reports whether a submitted form belongs to this flow.
func IsCaptureCustomID(customID string) bool {
	return strings.HasPrefix(customID, CustomIDPrefix)
}

func (f *Flow) Begin(ref MessageRef) (Form, error) {
	if ref.GuildID == 0 {
		return Form{}, boterr.ErrNoGuildContext
	}
	if strings.TrimSpace(ref.MessageID) == "" {
		return Form{}, ErrInvalidToken
	}
	return Form{
		CustomID:   CustomIDPrefix + IssueToken(f.secret, ref),
		Title:      "Add as command",
		FieldID:    FieldName,
		FieldLabel: "Command name",
		MinLength:  1,
		MaxLength:  store.MaxCommandNameLength,
	}, nil
}

// Complete commits the captured message under name. Expected outcomes come
// back as an Outcome with a reply and the matching sentinel error; a storage
// or transport failure comes back with a generic reply.
func (f *Flow) Complete(ctx context.Context, scope Scope, customID, name string) (Outcome, error) {
	if scope.GuildID == 0 {
		return Outcome{State: StateRejected, Reply: "Commands can only be captured inside a server."}, boterr.ErrNoGuildContext
	}
	if !IsCaptureCustomID(customID) {
		return Outcome{State: StateRejected, Reply: "This form has expired. Try the action again."}, ErrInvalidToken
	}
	ref, err := ResolveToken(f.secret, scope, strings.TrimPrefix(customID, CustomIDPrefix))
	if err != nil {
		return Outcome{State: StateRejected, Reply: "This form has expired. Try the action again."}, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > store.MaxCommandNameLength {
		return Outcome{
			State: StateRejected,
			Reply: fmt.Sprintf("Command names must be 1 to %d characters.", store.MaxCommandNameLength),
		}, store.ErrInvalidCommand
	}

	message, err := f.fetcher.FetchMessage(ctx, ref.ChannelID, ref.MessageID)
	if errors.Is(err, ErrMessageNotFound) {
		return Outcome{State: StateAbandoned, Name: name, Reply: "Message not found."}, err
	}
	if err != nil {
		return Outcome{State: StateAbandoned, Name: name, Reply: "Could not read that message right now."}, err
	}
	response := Synthesize(message)
	if response == "" {
		return Outcome{State: StateAbandoned, Name: name, Reply: "That message has no text or attachments to save."}, ErrEmptyMessage
	}

	err = f.store.AddCommand(ctx, ref.GuildID, name, response)
	switch {
	case err == nil:
		f.logger.Info("command captured", "guild_id", ref.GuildID, "message_id", ref.MessageID, "command", name)
		return Outcome{
			State:    StateCommitted,
			Name:     name,
			Response: response,
			Reply:    fmt.Sprintf("Added `%s%s`.", f.prefix, name),
		}, nil
	case errors.Is(err, store.ErrCommandExists):
		return Outcome{
			State: StateDuplicate,
			Name:  name,
			Reply: fmt.Sprintf("`%s%s` already exists.", f.prefix, name),
		}, err
	case errors.Is(err, store.ErrInvalidCommand):
		return Outcome{
			State: StateRejected,
			Name:  name,
			Reply: fmt.Sprintf("Command names must be 1 to %d characters.", store.MaxCommandNameLength),
		}, err
	default:
		return Outcome{State: StateAbandoned, Name: name, Reply: "Failed to save the command."}, err
	}
}

// Synthesize builds the stored response: the message body, then one line per
// attachment URL, in order.
func Synthesize(message Message) string {
	parts := make([]string, 0, len(message.AttachmentURLs)+1)
	if message.Content != "" {
		parts = append(parts, message.Content)
	}
	for _, url := range message.AttachmentURLs {
		if url = strings.TrimSpace(url); url != "" {
			parts = append(parts, url)
		}
	}
	return strings.Join(parts, "\n")
}

package gateway

import (
	"context"
	"strings"

	"github.com/dwizi/triggerbot/internal/store"
)

const DefaultTriggerPrefix = "!"

type CommandLookup interface {
	LookupCommand(ctx context.Context, guildID int64, name string) (store.Command, bool, error)
}

// TriggerResolver maps "<prefix><name>" chat text to the stored response.
type TriggerResolver struct {
	lookup CommandLookup
	prefix string
}

func NewTriggerResolver(lookup CommandLookup, prefix string) *TriggerResolver {
	if prefix == "" {
		prefix = DefaultTriggerPrefix
	}
	return &TriggerResolver{lookup: lookup, prefix: prefix}
}

func (r *TriggerResolver) Prefix() string {
	return r.prefix
}

// Resolve returns the response for rawText, or false when the text is not a
// trigger or names no command. The name after the prefix is used verbatim,
// so "! hello" looks up " hello".
func (r *TriggerResolver) Resolve(ctx context.Context, guildID int64, rawText string) (string, bool, error) {
	name, ok := r.candidate(rawText)
	if !ok || guildID == 0 {
		return "", false, nil
	}
	command, found, err := r.lookup.LookupCommand(ctx, guildID, name)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return command.Response, true, nil
}

func (r *TriggerResolver) candidate(rawText string) (string, bool) {
	text := strings.TrimSpace(rawText)
	if !strings.HasPrefix(text, r.prefix) {
		return "", false
	}
	name := strings.TrimPrefix(text, r.prefix)
	if name == "" {
		return "", false
	}
	return name, true
}

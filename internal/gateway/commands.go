package gateway

import (
	"strings"

	"github.com/dwizi/triggerbot/internal/store"
)

type CommandKind int

const (
	CommandKindChatInput CommandKind = 1
	CommandKindMessage   CommandKind = 3
)

const (
	CommandAdd    = "add"
	CommandUpdate = "update"
	CommandRemove = "remove"
	CommandList   = "list"
	CommandSearch = "search"

	// CaptureCommandName is the message context-menu action that turns an
	// existing message into a command.
	CaptureCommandName = "Add as command"
)

const (
	OptionName     = "name"
	OptionResponse = "response"
	OptionQuery    = "query"
)

type SlashCommandOption struct {
	Name        string
	Description string
	Required    bool
	MaxLength   int
}

type SlashCommand struct {
	Name        string
	Description string
	Kind        CommandKind
	Options     []SlashCommandOption
}

func nameOption(description string) SlashCommandOption {
	return SlashCommandOption{
		Name:        OptionName,
		Description: description,
		Required:    true,
		MaxLength:   store.MaxCommandNameLength,
	}
}

// SlashCommands returns the full command set registered in every guild. The
// order is stable so repeated registrations carry identical payloads.
func SlashCommands() []SlashCommand {
	return []SlashCommand{
		{
			Name:        CommandAdd,
			Description: "Add a trigger command",
			Kind:        CommandKindChatInput,
			Options: []SlashCommandOption{
				nameOption("Trigger name, used as !name"),
				{Name: OptionResponse, Description: "What the bot replies with", Required: true},
			},
		},
		{
			Name:        CommandUpdate,
			Description: "Change the response of a trigger command",
			Kind:        CommandKindChatInput,
			Options: []SlashCommandOption{
				nameOption("Trigger to change"),
				{Name: OptionResponse, Description: "New response", Required: true},
			},
		},
		{
			Name:        CommandRemove,
			Description: "Remove a trigger command",
			Kind:        CommandKindChatInput,
			Options:     []SlashCommandOption{nameOption("Trigger to remove")},
		},
		{
			Name:        CommandList,
			Description: "List the trigger commands of this server",
			Kind:        CommandKindChatInput,
		},
		{
			Name:        CommandSearch,
			Description: "Search trigger commands by name or response",
			Kind:        CommandKindChatInput,
			Options: []SlashCommandOption{
				{Name: OptionQuery, Description: "Text to look for", Required: true},
			},
		},
		{
			Name: CaptureCommandName,
			Kind: CommandKindMessage,
		},
	}
}

// IsSlashCommand reports whether name is a chat-input command of the schema.
func IsSlashCommand(name string) bool {
	name = strings.TrimSpace(name)
	for _, command := range SlashCommands() {
		if command.Kind == CommandKindChatInput && command.Name == name {
			return true
		}
	}
	return false
}

package gateway

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/dwizi/triggerbot/internal/store"
)

type fakeKey struct {
	guildID int64
	name    string
}

type fakeStore struct {
	mu       sync.Mutex
	commands map[fakeKey]string
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{commands: map[fakeKey]string{}}
}

func (f *fakeStore) put(guildID int64, name, response string) {
	f.commands[fakeKey{guildID, name}] = response
}

func (f *fakeStore) LookupCommand(ctx context.Context, guildID int64, name string) (store.Command, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.Command{}, false, f.err
	}
	response, ok := f.commands[fakeKey{guildID, name}]
	if !ok {
		return store.Command{}, false, nil
	}
	return store.Command{GuildID: guildID, Name: name, Response: response}, true, nil
}

func (f *fakeStore) AddCommand(ctx context.Context, guildID int64, name, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > store.MaxCommandNameLength {
		return store.ErrInvalidCommand
	}
	key := fakeKey{guildID, name}
	if _, exists := f.commands[key]; exists {
		return store.ErrCommandExists
	}
	f.commands[key] = response
	return nil
}

func (f *fakeStore) UpdateCommand(ctx context.Context, guildID int64, name, response string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := fakeKey{guildID, name}
	if _, exists := f.commands[key]; !exists {
		return store.ErrCommandNotFound
	}
	f.commands[key] = response
	return nil
}

func (f *fakeStore) RemoveCommand(ctx context.Context, guildID int64, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	key := fakeKey{guildID, name}
	if _, exists := f.commands[key]; !exists {
		return store.ErrCommandNotFound
	}
	delete(f.commands, key)
	return nil
}

func (f *fakeStore) ListCommands(ctx context.Context, guildID int64) ([]store.Command, error) {
	return f.SearchCommands(ctx, guildID, "")
}

func (f *fakeStore) SearchCommands(ctx context.Context, guildID int64, substring string) ([]store.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	needle := strings.ToLower(substring)
	commands := []store.Command{}
	for key, response := range f.commands {
		if key.guildID != guildID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(key.name), needle) && !strings.Contains(strings.ToLower(response), needle) {
			continue
		}
		commands = append(commands, store.Command{GuildID: guildID, Name: key.name, Response: response})
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands, nil
}

func commandInput(command string, options map[string]string) CommandInput {
	return CommandInput{
		Connector: "discord",
		GuildID:   42,
		ChannelID: "c1",
		Command:   command,
		Options:   options,
	}
}

func TestHandleMessageRepliesToTrigger(t *testing.T) {
	commands := newFakeStore()
	commands.put(42, "hello", "hi!")
	service := New(commands, Config{})

	output, err := service.HandleMessage(context.Background(), MessageInput{GuildID: 42, Text: "!hello"})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if !output.Handled || len(output.Replies) != 1 || output.Replies[0] != "hi!" {
		t.Fatalf("unexpected output: %+v", output)
	}

	output, err = service.HandleMessage(context.Background(), MessageInput{GuildID: 42, Text: "just chatting"})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if output.Handled {
		t.Fatalf("plain chat must not be handled: %+v", output)
	}
}

func TestHandleMessageSplitsLongResponse(t *testing.T) {
	commands := newFakeStore()
	line := strings.Repeat("x", 15)
	commands.put(42, "long", strings.Join([]string{line, line, line}, "\n"))
	service := New(commands, Config{MaxReplyChars: 32})

	output, err := service.HandleMessage(context.Background(), MessageInput{GuildID: 42, Text: "!long"})
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(output.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %#v", output.Replies)
	}
}

func TestHandleCommandAddThenTrigger(t *testing.T) {
	commands := newFakeStore()
	service := New(commands, Config{})
	ctx := context.Background()

	output, err := service.HandleCommand(ctx, commandInput("add", map[string]string{"name": "hello", "response": "hi!"}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(output.Replies[0], "Added `!hello`") {
		t.Fatalf("unexpected reply: %q", output.Replies[0])
	}

	output, err = service.HandleCommand(ctx, commandInput("add", map[string]string{"name": "hello", "response": "again"}))
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if !strings.Contains(output.Replies[0], "already exists") {
		t.Fatalf("expected duplicate reply, got %q", output.Replies[0])
	}

	trigger, err := service.HandleMessage(ctx, MessageInput{GuildID: 42, Text: "!hello"})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if trigger.Replies[0] != "hi!" {
		t.Fatalf("original response should survive the duplicate add, got %q", trigger.Replies[0])
	}
}

func TestHandleCommandUpdateAndRemove(t *testing.T) {
	commands := newFakeStore()
	commands.put(42, "hello", "hi!")
	service := New(commands, Config{})
	ctx := context.Background()

	tests := []struct {
		command string
		options map[string]string
		want    string
	}{
		{command: "update", options: map[string]string{"name": "hello", "response": "hey"}, want: "Updated `!hello`."},
		{command: "update", options: map[string]string{"name": "nope", "response": "hey"}, want: "`!nope` does not exist."},
		{command: "update", options: map[string]string{"name": "hello"}, want: "Usage: /update <name> <response>"},
		{command: "remove", options: map[string]string{"name": "hello"}, want: "Removed `!hello`."},
		{command: "remove", options: map[string]string{"name": "hello"}, want: "`!hello` does not exist."},
	}
	for _, tc := range tests {
		output, err := service.HandleCommand(ctx, commandInput(tc.command, tc.options))
		if err != nil {
			t.Fatalf("%s: %v", tc.command, err)
		}
		if output.Replies[0] != tc.want {
			t.Fatalf("%s %v: expected %q, got %q", tc.command, tc.options, tc.want, output.Replies[0])
		}
	}
	if _, found, _ := commands.LookupCommand(ctx, 42, "nope"); found {
		t.Fatal("update of a missing command must not create it")
	}
}

func TestHandleCommandRejectsInvalidName(t *testing.T) {
	service := New(newFakeStore(), Config{})
	output, err := service.HandleCommand(context.Background(), commandInput("add", map[string]string{
		"name":     strings.Repeat("n", store.MaxCommandNameLength+1),
		"response": "x",
	}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(output.Replies[0], "Command names must be") {
		t.Fatalf("unexpected reply: %q", output.Replies[0])
	}
}

func TestHandleCommandListIsChunked(t *testing.T) {
	commands := newFakeStore()
	commands.put(42, "a", "one")
	commands.put(42, "b", "two")
	commands.put(42, "c", strings.Repeat("z", 40))
	service := New(commands, Config{MaxReplyChars: 20})

	output, err := service.HandleCommand(context.Background(), commandInput("list", nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"!a: one\n!b: two", "!c: " + strings.Repeat("z", 40)}
	if strings.Join(output.Replies, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %#v, got %#v", want, output.Replies)
	}
}

func TestHandleCommandListEmpty(t *testing.T) {
	service := New(newFakeStore(), Config{})
	output, err := service.HandleCommand(context.Background(), commandInput("list", nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(output.Replies) != 1 || output.Replies[0] != "No commands are registered yet." {
		t.Fatalf("unexpected output: %+v", output)
	}
}

func TestHandleCommandSearch(t *testing.T) {
	commands := newFakeStore()
	commands.put(42, "cats", "meow")
	commands.put(42, "dog", "woof")
	service := New(commands, Config{})
	ctx := context.Background()

	output, err := service.HandleCommand(ctx, commandInput("search", map[string]string{"query": "MEOW"}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if output.Replies[0] != "!cats: meow" {
		t.Fatalf("unexpected reply: %q", output.Replies[0])
	}

	output, err = service.HandleCommand(ctx, commandInput("search", map[string]string{"query": "bird"}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if output.Replies[0] != "No commands match `bird`." {
		t.Fatalf("unexpected reply: %q", output.Replies[0])
	}
}

func TestHandleCommandRequiresGuild(t *testing.T) {
	service := New(newFakeStore(), Config{})
	input := commandInput("list", nil)
	input.GuildID = 0
	output, err := service.HandleCommand(context.Background(), input)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !output.Handled || !strings.Contains(output.Replies[0], "inside a server") {
		t.Fatalf("unexpected output: %+v", output)
	}
}

func TestHandleCommandReturnsStorageFailure(t *testing.T) {
	commands := newFakeStore()
	commands.err = errors.New("database is locked")
	service := New(commands, Config{})
	if _, err := service.HandleCommand(context.Background(), commandInput("list", nil)); err == nil {
		t.Fatal("expected storage failure to surface")
	}
}

func TestHandleCommandIgnoresUnknownCommand(t *testing.T) {
	service := New(newFakeStore(), Config{})
	output, err := service.HandleCommand(context.Background(), commandInput("task", nil))
	if err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if output.Handled {
		t.Fatalf("unknown command must not be handled: %+v", output)
	}
}

func TestSlashCommandsSchema(t *testing.T) {
	commands := SlashCommands()
	seen := map[string]bool{}
	for _, command := range commands {
		if seen[command.Name] {
			t.Fatalf("duplicate command %q", command.Name)
		}
		seen[command.Name] = true
		if command.Kind == CommandKindMessage && command.Description != "" {
			t.Fatalf("message command %q must not carry a description", command.Name)
		}
	}
	for _, name := range []string{"add", "update", "remove", "list", "search", CaptureCommandName} {
		if !seen[name] {
			t.Fatalf("schema is missing %q", name)
		}
	}
	if IsSlashCommand(CaptureCommandName) {
		t.Fatal("message command must not be treated as a chat-input command")
	}
}

func TestHandleCommandTrimsNames(t *testing.T) {
	commands := newFakeStore()
	service := New(commands, Config{})
	ctx := context.Background()

	output, err := service.HandleCommand(ctx, commandInput("add", map[string]string{"name": "  hello ", "response": "hi!"}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if output.Replies[0] != "Added `!hello`." {
		t.Fatalf("unexpected reply: %q", output.Replies[0])
	}
	if _, ok := commands.commands[fakeKey{42, "hello"}]; !ok {
		t.Fatalf("expected trimmed name stored, got %v", commands.commands)
	}
}

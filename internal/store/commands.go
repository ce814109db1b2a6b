package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxCommandNameLength = 50

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrCommandExists   = errors.New("command already exists")
	ErrInvalidCommand  = errors.New("invalid command")
)

// NormalizeName is the canonical form of a command name. Every read and write
// goes through it.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

type Command struct {
	GuildID   int64
	Name      string
	Response  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LookupCommand reports false without an error when the guild has no command
// with that exact name.
func (s *Store) LookupCommand(ctx context.Context, guildID int64, name string) (Command, bool, error) {
	name = NormalizeName(name)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT guild_id, name, response, created_at_unix, updated_at_unix
		 FROM commands WHERE guild_id = ? AND name = ?`,
		guildID,
		name,
	)
	command, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Command{}, false, nil
	}
	if err != nil {
		return Command{}, false, fmt.Errorf("lookup command: %w", err)
	}
	return command, true, nil
}

// AddCommand inserts a new command. An existing (guild, name) pair is reported
// as ErrCommandExists and left untouched.
func (s *Store) AddCommand(ctx context.Context, guildID int64, name, response string) error {
	name = NormalizeName(name)
	if err := validateCommand(guildID, name); err != nil {
		return err
	}
	nowUnix := time.Now().UTC().Unix()
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO commands (guild_id, name, response, created_at_unix, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (guild_id, name) DO NOTHING`,
		guildID,
		name,
		response,
		nowUnix,
		nowUnix,
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert command rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCommandExists
	}
	return nil
}

func (s *Store) UpdateCommand(ctx context.Context, guildID int64, name, response string) error {
	name = NormalizeName(name)
	if err := validateCommand(guildID, name); err != nil {
		return err
	}
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE commands SET response = ?, updated_at_unix = ? WHERE guild_id = ? AND name = ?`,
		response,
		time.Now().UTC().Unix(),
		guildID,
		name,
	)
	if err != nil {
		return fmt.Errorf("update command: %w", err)
	}
	return requireAffected(result, "update command")
}

func (s *Store) RemoveCommand(ctx context.Context, guildID int64, name string) error {
	name = NormalizeName(name)
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM commands WHERE guild_id = ? AND name = ?`,
		guildID,
		name,
	)
	if err != nil {
		return fmt.Errorf("delete command: %w", err)
	}
	return requireAffected(result, "delete command")
}

// RemoveCommands deletes each named command with its own statement and returns
// how many existed. Missing names are skipped; the first storage error stops
// the loop.
func (s *Store) RemoveCommands(ctx context.Context, guildID int64, names []string) (int, error) {
	removed := 0
	seen := map[string]struct{}{}
	for _, name := range names {
		name = NormalizeName(name)
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		err := s.RemoveCommand(ctx, guildID, name)
		if errors.Is(err, ErrCommandNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Store) ListCommands(ctx context.Context, guildID int64) ([]Command, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT guild_id, name, response, created_at_unix, updated_at_unix
		 FROM commands WHERE guild_id = ? ORDER BY name ASC`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	return collectCommands(rows)
}

// SearchCommands matches the substring against name or response, ignoring
// case, and orders results by name.
func (s *Store) SearchCommands(ctx context.Context, guildID int64, substring string) ([]Command, error) {
	if substring == "" {
		return s.ListCommands(ctx, guildID)
	}
	pattern := "%" + escapeLike(foldText(substring)) + "%"
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT guild_id, name, response, created_at_unix, updated_at_unix
		 FROM commands
		 WHERE guild_id = ? AND (fold(name) LIKE ? ESCAPE '\' OR fold(response) LIKE ? ESCAPE '\')
		 ORDER BY name ASC`,
		guildID,
		pattern,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search commands: %w", err)
	}
	return collectCommands(rows)
}

func (s *Store) ListGuildIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT guild_id FROM commands ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("list guild ids: %w", err)
	}
	defer rows.Close()
	guildIDs := []int64{}
	for rows.Next() {
		var guildID int64
		if err := rows.Scan(&guildID); err != nil {
			return nil, fmt.Errorf("scan guild id: %w", err)
		}
		guildIDs = append(guildIDs, guildID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guild ids: %w", err)
	}
	return guildIDs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (Command, error) {
	var (
		command       Command
		createdAtUnix int64
		updatedAtUnix int64
	)
	if err := row.Scan(&command.GuildID, &command.Name, &command.Response, &createdAtUnix, &updatedAtUnix); err != nil {
		return Command{}, err
	}
	command.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	command.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return command, nil
}

func collectCommands(rows *sql.Rows) ([]Command, error) {
	defer rows.Close()
	commands := []Command{}
	for rows.Next() {
		command, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, command)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}

func requireAffected(result sql.Result, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

func validateCommand(guildID int64, name string) error {
	if guildID == 0 {
		return fmt.Errorf("%w: guild id is required", ErrInvalidCommand)
	}
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	if utf8.RuneCountInString(name) > MaxCommandNameLength {
		return fmt.Errorf("%w: name is longer than %d characters", ErrInvalidCommand, MaxCommandNameLength)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(input string) string {
	return likeEscaper.Replace(input)
}

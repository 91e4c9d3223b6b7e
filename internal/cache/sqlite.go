package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/adamavenir/pairchat/internal/types"
)

const schemaSQL = `
-- Channel directory snapshot, most recent first
CREATE TABLE IF NOT EXISTS pc_channels (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,           -- order in the directory
  name TEXT NOT NULL,
  cover_url TEXT,
  members TEXT NOT NULL DEFAULT '[]',  -- JSON array of user ids
  last_message TEXT,                   -- JSON MessageSummary
  unread_count INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

-- Confirmed message windows per channel
CREATE TABLE IF NOT EXISTS pc_messages (
  channel_id TEXT NOT NULL,
  id INTEGER NOT NULL,                 -- server sequence
  ts INTEGER NOT NULL,
  sender_id TEXT NOT NULL,
  kind TEXT NOT NULL,                  -- text, file, system
  text TEXT,
  file TEXT,                           -- JSON FilePayload
  correlation_id TEXT,
  parent_id INTEGER,
  reactions TEXT,                      -- JSON key -> user ids
  thread TEXT,                         -- JSON ThreadSummary
  edited_at INTEGER,
  PRIMARY KEY (channel_id, id)
);
`

const messageColumns = `id, ts, sender_id, kind, text, file, correlation_id, parent_id, reactions, thread, edited_at`

// SQLite is a Cache backed by a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Cache = (*SQLite)(nil)

// OpenSQLite opens (and creates if needed) the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveChannels replaces the directory snapshot. Provisional channels are skipped.
func (s *SQLite) SaveChannels(ctx context.Context, channels []types.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pc_channels`); err != nil {
		return err
	}
	position := 0
	for _, ch := range channels {
		if ch.Provisional {
			continue
		}
		membersJSON, err := json.Marshal(ch.Members)
		if err != nil {
			return err
		}
		lastJSON, err := nullableJSON(ch.LastMessage)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pc_channels (id, position, name, cover_url, members, last_message, unread_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, ch.ID, position, ch.Name, ch.CoverURL, string(membersJSON), lastJSON, ch.UnreadCount, ch.UpdatedAt)
		if err != nil {
			return err
		}
		position++
	}
	return tx.Commit()
}

func (s *SQLite) LoadChannels(ctx context.Context) ([]types.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cover_url, members, last_message, unread_count, updated_at
		FROM pc_channels
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []types.Channel
	for rows.Next() {
		var (
			ch          types.Channel
			coverURL    sql.NullString
			membersJSON string
			lastJSON    sql.NullString
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &coverURL, &membersJSON, &lastJSON, &ch.UnreadCount, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		ch.CoverURL = coverURL.String
		if err := json.Unmarshal([]byte(membersJSON), &ch.Members); err != nil {
			return nil, fmt.Errorf("channel %s members: %w", ch.ID, err)
		}
		if lastJSON.Valid {
			var summary types.MessageSummary
			if err := json.Unmarshal([]byte(lastJSON.String), &summary); err != nil {
				return nil, fmt.Errorf("channel %s last message: %w", ch.ID, err)
			}
			ch.LastMessage = &summary
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// SaveMessages replaces the cached window of one channel with its confirmed messages.
func (s *SQLite) SaveMessages(ctx context.Context, channelID string, messages []types.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pc_messages WHERE channel_id = ?`, channelID); err != nil {
		return err
	}
	for _, msg := range confirmedOnly(messages) {
		fileJSON, err := nullableJSON(msg.File)
		if err != nil {
			return err
		}
		threadJSON, err := nullableJSON(msg.Thread)
		if err != nil {
			return err
		}
		var reactionsJSON any
		if len(msg.Reactions) > 0 {
			data, err := json.Marshal(msg.Reactions)
			if err != nil {
				return err
			}
			reactionsJSON = string(data)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO pc_messages (channel_id, `+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, channelID, msg.ID, msg.TS, msg.SenderID, string(msg.Kind), msg.Text, fileJSON,
			msg.CorrelationID, msg.ParentID, reactionsJSON, threadJSON, msg.EditedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) LoadMessages(ctx context.Context, channelID string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM pc_messages
		WHERE channel_id = ?
		ORDER BY id ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msg.ChannelID = channelID
		msg.State = types.SendStateSent
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (types.Message, error) {
	var (
		msg           types.Message
		kind          string
		text          sql.NullString
		fileJSON      sql.NullString
		correlationID sql.NullString
		parentID      sql.NullInt64
		reactionsJSON sql.NullString
		threadJSON    sql.NullString
		editedAt      sql.NullInt64
	)
	if err := rows.Scan(&msg.ID, &msg.TS, &msg.SenderID, &kind, &text, &fileJSON,
		&correlationID, &parentID, &reactionsJSON, &threadJSON, &editedAt); err != nil {
		return types.Message{}, err
	}
	msg.Kind = types.MessageKind(kind)
	msg.Text = text.String
	msg.CorrelationID = correlationID.String
	msg.ParentID = parentID.Int64
	if editedAt.Valid {
		value := editedAt.Int64
		msg.EditedAt = &value
	}
	if fileJSON.Valid {
		var file types.FilePayload
		if err := json.Unmarshal([]byte(fileJSON.String), &file); err != nil {
			return types.Message{}, fmt.Errorf("message %d file: %w", msg.ID, err)
		}
		msg.File = &file
	}
	if threadJSON.Valid {
		var thread types.ThreadSummary
		if err := json.Unmarshal([]byte(threadJSON.String), &thread); err != nil {
			return types.Message{}, fmt.Errorf("message %d thread: %w", msg.ID, err)
		}
		msg.Thread = &thread
	}
	if reactionsJSON.Valid {
		if err := json.Unmarshal([]byte(reactionsJSON.String), &msg.Reactions); err != nil {
			return types.Message{}, fmt.Errorf("message %d reactions: %w", msg.ID, err)
		}
	}
	return msg, nil
}

// nullableJSON marshals v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// archiveRepo records forwarded events in SQLite
type archiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo opens (or creates) the archive database
func NewArchiveRepo(dbPath string) (repo.ArchiveRepo, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS forwarded_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_msg_id TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			forwarded_msg_id TEXT NOT NULL,
			helper_msg_id TEXT NOT NULL DEFAULT '',
			room_id TEXT NOT NULL,
			date_label TEXT NOT NULL,
			rewards TEXT NOT NULL,
			video_count INTEGER NOT NULL DEFAULT -1,
			created_at INTEGER NOT NULL,
			retracted_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_forwarded_events_source ON forwarded_events(source_msg_id)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &archiveRepo{db: db}, nil
}

// Record stores one forward; videoCount is -1 when enrichment was skipped
func (r *archiveRepo) Record(ctx context.Context, entry domain.ForwardedEntry, event *domain.ParsedEvent, videoCount int64) error {
	rewards := []domain.Reward{}
	if event != nil {
		rewards = event.Rewards
	}
	rewardsJSON, err := json.Marshal(rewards)
	if err != nil {
		return fmt.Errorf("encode rewards: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO forwarded_events
			(source_msg_id, channel_id, forwarded_msg_id, helper_msg_id, room_id, date_label, rewards, video_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.SourceMessageID, entry.ChannelID, entry.ForwardedMessageID, entry.HelperMessageID,
		entry.RoomID, entry.DateTime, string(rewardsJSON), videoCount, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert forwarded event: %w", err)
	}
	return nil
}

// MarkRetracted stamps every live record of a source message
func (r *archiveRepo) MarkRetracted(ctx context.Context, sourceMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE forwarded_events SET retracted_at = ?
		WHERE source_msg_id = ? AND retracted_at IS NULL
	`, time.Now().UnixMilli(), sourceMessageID)
	if err != nil {
		return fmt.Errorf("mark retracted: %w", err)
	}
	return nil
}

// Recent lists the newest records first
func (r *archiveRepo) Recent(ctx context.Context, limit int) ([]*repo.ArchivedEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_msg_id, room_id, date_label, rewards, video_count, created_at, retracted_at
		FROM forwarded_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var result []*repo.ArchivedEvent
	for rows.Next() {
		var ev repo.ArchivedEvent
		var rewardsJSON string
		var createdAt int64
		var retractedAt sql.NullInt64
		if err := rows.Scan(&ev.ID, &ev.SourceMessageID, &ev.RoomID, &ev.DateTime, &rewardsJSON,
			&ev.VideoCount, &createdAt, &retractedAt); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		if err := json.Unmarshal([]byte(rewardsJSON), &ev.Rewards); err != nil {
			return nil, fmt.Errorf("decode rewards: %w", err)
		}
		ev.CreatedAt = time.UnixMilli(createdAt)
		if retractedAt.Valid {
			t := time.UnixMilli(retractedAt.Int64)
			ev.RetractedAt = &t
		}
		result = append(result, &ev)
	}
	return result, rows.Err()
}

// Close closes the database
func (r *archiveRepo) Close() error {
	return r.db.Close()
}

package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry types. System entries are written by services on state changes;
// comments come from users.
const (
	EntryComment = "comment"
	EntrySystem  = "system"
)

var (
	// ErrEmptyComment is returned for a blank comment body
	ErrEmptyComment = errors.New("comment cannot be empty")
)

const maxCommentLength = 4000

// Entry is one line of a task's activity feed.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	TaskID    uuid.UUID      `json:"task_id"`
	UserID    uuid.UUID      `json:"user_id"`
	UserEmail string         `json:"user_email,omitempty"`
	EntryType string         `json:"entry_type"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Service reads and writes task activity. Access decisions belong to the
// caller; this service assumes the task is already resolved as visible.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// AddComment appends a user comment.
func (s *Service) AddComment(ctx context.Context, taskID, userID uuid.UUID, content string) (*Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if len(content) > maxCommentLength {
		return nil, fmt.Errorf("comment exceeds %d characters", maxCommentLength)
	}

	var e Entry
	err := s.pool.QueryRow(ctx, `
		INSERT INTO task_activity (task_id, user_id, entry_type, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, task_id, user_id, entry_type, content, created_at
	`, taskID, userID, EntryComment, content).Scan(
		&e.ID, &e.TaskID, &e.UserID, &e.EntryType, &e.Content, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &e, nil
}

// AddSystem appends a system entry describing a state change. meta carries
// structured details (old/new status, assignee ids).
func (s *Service) AddSystem(ctx context.Context, taskID, userID uuid.UUID, content string, meta map[string]any) error {
	metaJSON := []byte("{}")
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to marshal activity meta: %w", err)
		}
		metaJSON = b
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO task_activity (task_id, user_id, entry_type, content, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, taskID, userID, EntrySystem, content, metaJSON); err != nil {
		return fmt.Errorf("failed to add activity entry: %w", err)
	}
	return nil
}

// List returns a task's activity, oldest first.
func (s *Service) List(ctx context.Context, taskID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.task_id, a.user_id, u.email, a.entry_type, a.content, a.meta, a.created_at
		FROM task_activity a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.task_id = $1
		ORDER BY a.created_at ASC
		LIMIT $2
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var email *string
		var metaRaw []byte
		if err := rows.Scan(&e.ID, &e.TaskID, &e.UserID, &email, &e.EntryType, &e.Content, &metaRaw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if email != nil {
			e.UserEmail = *email
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

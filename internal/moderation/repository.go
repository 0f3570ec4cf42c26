package moderation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackit-qa/stackit/internal/platform/db"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Repository persists moderation logs, content state and owner notifications.
type Repository interface {
	Save(ctx context.Context, log *Log, effect func(context.Context) error) error
	ListLogs(ctx context.Context, limit, offset int) ([]Log, int, error)
	SaveNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]InboxItem, int, error)
	MarkNotificationRead(ctx context.Context, userID string, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// stateColumns maps content actions to the moderation_state flag they set.
var stateColumns = map[Action]struct {
	column string
	value  bool
}{
	ActionFlag:      {"flagged", true},
	ActionUnflag:    {"flagged", false},
	ActionHide:      {"hidden", true},
	ActionUnhide:    {"hidden", false},
	ActionLock:      {"locked", true},
	ActionUnlock:    {"locked", false},
	ActionFeature:   {"featured", true},
	ActionUnfeature: {"featured", false},
	ActionDelete:    {"deleted", true},
}

// Save writes log and, for content actions, the resulting content state in
// one transaction. effect runs last inside it; an effect error discards the
// log. CreatedAt is filled from the database.
func (r *PGRepository) Save(ctx context.Context, log *Log, effect func(context.Context) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO moderation_logs (id, moderator_id, action, target_type, target_id, owner_id, reason)
			 VALUES ($1::uuid, $2::uuid, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, ''))
			 RETURNING created_at`,
			log.ID, log.ModeratorID, string(log.Action), string(log.TargetType), log.TargetID, log.OwnerID, log.Reason,
		).Scan(&log.CreatedAt)
		if err != nil {
			return fmt.Errorf("moderation: insert log: %w", err)
		}
		state, ok := stateColumns[log.Action]
		if !ok {
			return runEffect(ctx, effect)
		}
		// column comes from stateColumns, never from input.
		query := fmt.Sprintf(
			`INSERT INTO moderation_state (target_type, target_id, %[1]s, updated_at, updated_by)
			 VALUES ($1, $2, $3, NOW(), $4::uuid)
			 ON CONFLICT (target_type, target_id)
			 DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`,
			state.column)
		if _, err := tx.Exec(ctx, query, string(log.TargetType), log.TargetID, state.value, log.ModeratorID); err != nil {
			return fmt.Errorf("moderation: update state: %w", err)
		}
		return runEffect(ctx, effect)
	})
}

func runEffect(ctx context.Context, effect func(context.Context) error) error {
	if effect == nil {
		return nil
	}
	return effect(ctx)
}

// ListLogs returns a page of logs, newest first, with the total count.
func (r *PGRepository) ListLogs(ctx context.Context, limit, offset int) ([]Log, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM moderation_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("moderation: count logs: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, moderator_id::text, action, target_type, target_id,
			COALESCE(owner_id::text, ''), COALESCE(reason, ''), created_at
		 FROM moderation_logs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("moderation: list logs: %w", err)
	}
	defer rows.Close()
	var logs []Log
	for rows.Next() {
		var (
			l                  Log
			action, targetType string
		)
		if err := rows.Scan(&l.ID, &l.ModeratorID, &action, &targetType, &l.TargetID, &l.OwnerID, &l.Reason, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("moderation: scan log: %w", err)
		}
		l.Action, l.TargetType = Action(action), TargetType(targetType)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("moderation: list logs: %w", err)
	}
	return logs, total, nil
}

// SaveNotification stores a notification for its owner. Saving the same log
// twice is a no-op, so retried jobs do not duplicate rows.
func (r *PGRepository) SaveNotification(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, log_id, kind, message, payload)
		 VALUES ($1::uuid, $2::uuid, 'moderation', $3, $4)
		 ON CONFLICT (user_id, log_id) DO NOTHING`,
		n.UserID, n.LogID, n.Message(), payload)
	if err != nil {
		return fmt.Errorf("moderation: save notification: %w", err)
	}
	return nil
}

// ListNotifications returns a page of userID's notifications, unread first
// and then newest first, with the total count.
func (r *PGRepository) ListNotifications(ctx context.Context, userID string, limit, offset int) ([]InboxItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1::uuid`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("moderation: count notifications: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, message, log_id::text, read_at, created_at
		 FROM notifications WHERE user_id = $1::uuid
		 ORDER BY read_at IS NOT NULL, created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("moderation: list notifications: %w", err)
	}
	defer rows.Close()
	var items []InboxItem
	for rows.Next() {
		var it InboxItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.Message, &it.LogID, &it.ReadAt, &it.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("moderation: scan notification: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("moderation: list notifications: %w", err)
	}
	return items, total, nil
}

// MarkNotificationRead stamps read_at on one of userID's notifications.
// Marking an already read notification keeps the first timestamp.
func (r *PGRepository) MarkNotificationRead(ctx context.Context, userID string, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND user_id = $2::uuid`, id, userID)
	if err != nil {
		return fmt.Errorf("moderation: mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)

package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "supportchat/internal/pkg/messaging/domain"
)

// PgMessagingRepository persists the messaging domain in PostgreSQL under
// the "messaging" schema (see persistence/schema.sql).
type PgMessagingRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessagingRepository(pool *pgxpool.Pool) *PgMessagingRepository {
	return &PgMessagingRepository{pool: pool}
}

func (r *PgMessagingRepository) CreateThread(ctx context.Context, t domain.Thread, participants []domain.Participant) (*domain.Thread, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingRepository: nil pool")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO messaging.thread (thread_type, subject, is_active, participant_count, created_at)
		VALUES ($1, $2, TRUE, $3, $4)
		RETURNING id::text
	`, t.Type, t.Subject, len(participants), t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return nil, err
	}

	for _, p := range participants {
		_, err = tx.Exec(ctx, `
			INSERT INTO messaging.participant (thread_id, principal_id, principal_type, role, joined_at, is_active)
			VALUES ($1::uuid, $2::uuid, $3, $4, $5, TRUE)
			ON CONFLICT (thread_id, principal_id)
			DO UPDATE SET is_active = TRUE, left_at = NULL, joined_at = EXCLUDED.joined_at
		`, t.ID, p.PrincipalID, p.PrincipalType, p.Role, t.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.IsActive = true
	t.ParticipantCount = len(participants)
	return &t, nil
}

func (r *PgMessagingRepository) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	var t domain.Thread
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, thread_type, subject, is_active, participant_count, last_message_at, last_message_preview, created_at
		FROM messaging.thread
		WHERE id = $1::uuid
	`, threadID).Scan(&t.ID, &t.Type, &t.Subject, &t.IsActive, &t.ParticipantCount, &t.LastMessageAt, &t.LastMessagePreview, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PgMessagingRepository) ListThreadsForPrincipal(ctx context.Context, principalID string, limit, offset int) ([]domain.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id::text, t.thread_type, t.subject, t.is_active, t.participant_count, t.last_message_at, t.last_message_preview, t.created_at
		FROM messaging.thread t
		JOIN messaging.participant p ON p.thread_id = t.id
		WHERE p.principal_id = $1::uuid AND p.is_active
		ORDER BY t.last_message_at DESC NULLS LAST, t.created_at DESC
		LIMIT $2 OFFSET $3
	`, principalID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		var t domain.Thread
		if err := rows.Scan(&t.ID, &t.Type, &t.Subject, &t.IsActive, &t.ParticipantCount, &t.LastMessageAt, &t.LastMessagePreview, &t.CreatedAt); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (r *PgMessagingRepository) IsActiveParticipant(ctx context.Context, threadID, principalID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messaging.participant
			WHERE thread_id = $1::uuid AND principal_id = $2::uuid AND is_active
		)
	`, threadID, principalID).Scan(&ok)
	return ok, err
}

func (r *PgMessagingRepository) ListActiveParticipants(ctx context.Context, threadID string) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT thread_id::text, principal_id::text, principal_type, role, joined_at, left_at, last_read_at, is_active
		FROM messaging.participant
		WHERE thread_id = $1::uuid AND is_active
		ORDER BY joined_at
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ThreadID, &p.PrincipalID, &p.PrincipalType, &p.Role, &p.JoinedAt, &p.LeftAt, &p.LastReadAt, &p.IsActive); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (r *PgMessagingRepository) DeactivateParticipant(ctx context.Context, threadID, principalID string, leftAt time.Time) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE messaging.participant
		SET is_active = FALSE, left_at = $3
		WHERE thread_id = $1::uuid AND principal_id = $2::uuid AND is_active
	`, threadID, principalID, leftAt)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		return 0, domain.ErrNotFound
	}

	// Keep the cached count equal to the active participant count and
	// deactivate the thread when the last participant leaves.
	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE messaging.thread t
		SET participant_count = sub.n, is_active = (sub.n > 0)
		FROM (
			SELECT COUNT(*)::int AS n FROM messaging.participant
			WHERE thread_id = $1::uuid AND is_active
		) sub
		WHERE t.id = $1::uuid
		RETURNING sub.n
	`, threadID).Scan(&remaining)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *PgMessagingRepository) SaveMessage(ctx context.Context, m domain.Message) (*domain.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessagingRepository: nil pool")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO messaging.message (thread_id, sender_id, content, msg_type, reply_to_id, attachment_url, attachment_meta)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5::uuid, $6, COALESCE($7::json, NULL))
		RETURNING id::text, created_at
	`, m.ThreadID, m.SenderID, m.Content, m.MsgType, m.ReplyToID, m.AttachmentURL, m.AttachmentMeta).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE messaging.thread
		SET last_message_at = $2, last_message_preview = $3
		WHERE id = $1::uuid
	`, m.ThreadID, m.CreatedAt, m.Preview())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PgMessagingRepository) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, thread_id::text, sender_id::text, content, msg_type, reply_to_id::text, attachment_url, attachment_meta, edited_at, deleted_at, created_at
		FROM messaging.message
		WHERE thread_id = $1::uuid
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Content, &m.MsgType, &m.ReplyToID, &m.AttachmentURL, &m.AttachmentMeta, &m.EditedAt, &m.DeletedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *PgMessagingRepository) SoftDeleteMessage(ctx context.Context, messageID, requesterID string, isAdmin bool) (string, error) {
	var threadID string
	err := r.pool.QueryRow(ctx, `
		UPDATE messaging.message
		SET content = $4, deleted_at = now()
		WHERE id = $1::uuid AND deleted_at IS NULL AND (sender_id = $2::uuid OR $3)
		RETURNING thread_id::text
	`, messageID, requesterID, isAdmin, domain.Tombstone).Scan(&threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the message does not exist, is already tombstoned, or the
		// requester may not delete it; distinguish for the caller.
		var exists bool
		if err2 := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM messaging.message WHERE id = $1::uuid AND deleted_at IS NULL)`,
			messageID).Scan(&exists); err2 != nil {
			return "", err2
		}
		if exists {
			return "", domain.ErrAccessDenied
		}
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return threadID, nil
}

func (r *PgMessagingRepository) CreateDeliveryRecords(ctx context.Context, messageID, threadID, senderID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO messaging.delivery_record (message_id, recipient_id, recipient_type, status)
		SELECT $1::uuid, p.principal_id, p.principal_type, 0
		FROM messaging.participant p
		WHERE p.thread_id = $2::uuid AND p.is_active AND p.principal_id <> $3::uuid
		ON CONFLICT (message_id, recipient_id) DO NOTHING
	`, messageID, threadID, senderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgMessagingRepository) MarkDelivered(ctx context.Context, messageID string, recipientIDs []string, at time.Time) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	// Guarded forward-only: SENT(0) -> DELIVERED(1). Records already READ
	// are untouched.
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.delivery_record
		SET status = 1, delivered_at = $3
		WHERE message_id = $1::uuid AND recipient_id = ANY($2::uuid[]) AND status < 1
	`, messageID, recipientIDs, at)
	return err
}

func (r *PgMessagingRepository) MarkRead(ctx context.Context, threadID, principalID string, messageIDs []string, at time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// NULL message id list means "everything unread in the thread". The
	// status guard makes redundant calls no-ops.
	var ids any
	if len(messageIDs) > 0 {
		ids = messageIDs
	}
	ct, err := tx.Exec(ctx, `
		UPDATE messaging.delivery_record d
		SET status = 2, delivered_at = COALESCE(d.delivered_at, $4), read_at = $4
		FROM messaging.message m
		WHERE d.message_id = m.id
		  AND m.thread_id = $1::uuid
		  AND d.recipient_id = $2::uuid
		  AND d.status < 2
		  AND ($3::uuid[] IS NULL OR d.message_id = ANY($3::uuid[]))
	`, threadID, principalID, ids, at)
	if err != nil {
		return 0, err
	}

	// last_read_at moves only when records actually changed, so a redundant
	// call leaves the row exactly as the first one did.
	if ct.RowsAffected() > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE messaging.participant
			SET last_read_at = $3
			WHERE thread_id = $1::uuid AND principal_id = $2::uuid AND is_active
		`, threadID, principalID, at)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgMessagingRepository) UnreadCount(ctx context.Context, threadID, principalID string) (int, error) {
	// Derived, never stored: the delivery records are the single source of
	// truth for read state.
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messaging.delivery_record d
		JOIN messaging.message m ON m.id = d.message_id
		WHERE m.thread_id = $1::uuid AND d.recipient_id = $2::uuid AND d.status < 2
	`, threadID, principalID).Scan(&n)
	return n, err
}

// deliveryGapJoin matches (message, active participant) pairs that should
// hold a delivery record: everyone but the sender, and only for messages
// sent during their membership. A late joiner owes nothing for history that
// predates their join.
const deliveryGapJoin = `
	FROM messaging.message m
	JOIN messaging.participant p
	  ON p.thread_id = m.thread_id AND p.is_active AND p.principal_id <> m.sender_id
	 AND m.created_at >= p.joined_at
	WHERE m.thread_id = $1::uuid`

func (r *PgMessagingRepository) HasDeliveryGaps(ctx context.Context, threadID string) (bool, error) {
	var gap bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			`+deliveryGapJoin+`
			  AND NOT EXISTS (
				SELECT 1 FROM messaging.delivery_record d
				WHERE d.message_id = m.id AND d.recipient_id = p.principal_id
			  )
		)
	`, threadID).Scan(&gap)
	return gap, err
}

func (r *PgMessagingRepository) BackfillDeliveries(ctx context.Context, threadID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO messaging.delivery_record (message_id, recipient_id, recipient_type, status)
		SELECT m.id, p.principal_id, p.principal_type, 0
		`+deliveryGapJoin+`
		ON CONFLICT (message_id, recipient_id) DO NOTHING
	`, threadID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

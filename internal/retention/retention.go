package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PurgeExpiredInvites deletes pending invitations whose expiry has passed the
// retention window. Accepted and revoked invites are kept as history.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func PurgeExpiredInvites(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM org_invites
		WHERE accepted_at IS NULL
		  AND revoked_at IS NULL
		  AND expires_at < NOW() - INTERVAL '1 day' * $1
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invites: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOldAuditRows deletes audit_log rows older than the specified days.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func DeleteOldAuditRows(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM audit_log
		WHERE created_at < NOW() - INTERVAL '1 day' * $1
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunRetentionJob executes both retention operations and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, pool *pgxpool.Pool, inviteDays, auditDays int) error {
	log.Info().
		Int("invite_retention_days", inviteDays).
		Int("audit_retention_days", auditDays).
		Msg("Starting retention job")

	startTime := time.Now()

	invitesPurged, err := PurgeExpiredInvites(ctx, pool, inviteDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge expired invites")
		return fmt.Errorf("invite cleanup failed: %w", err)
	}

	auditDeleted, err := DeleteOldAuditRows(ctx, pool, auditDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete old audit rows")
		return fmt.Errorf("audit cleanup failed: %w", err)
	}

	log.Info().
		Int64("invites_purged", invitesPurged).
		Int64("audit_rows_deleted", auditDeleted).
		Dur("duration", time.Since(startTime)).
		Msg("Retention job completed")

	return nil
}

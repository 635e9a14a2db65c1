package db

import (
	"context"
	"fmt"
	"strings"

	"voiceqc.dev/voiceqc/internal/keypool"
)

// ListCredentials loads every stored provider credential.
func (p *Pool) ListCredentials(ctx context.Context) ([]keypool.Credential, error) {
	const q = `
SELECT
	credential_uuid::text,
	label,
	secret_value,
	active,
	success_count,
	failure_count,
	consecutive_failures,
	last_used_at,
	last_failure_at,
	deactivated_at,
	created_at
FROM voiceqc.provider_credentials
ORDER BY created_at ASC, credential_id ASC
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query provider credentials: %w", err)
	}
	defer rows.Close()

	items := make([]keypool.Credential, 0, 8)
	for rows.Next() {
		var credential keypool.Credential
		if err := rows.Scan(
			&credential.ID,
			&credential.Label,
			&credential.Secret,
			&credential.Active,
			&credential.SuccessCount,
			&credential.FailureCount,
			&credential.ConsecutiveFailures,
			&credential.LastUsedAt,
			&credential.LastFailureAt,
			&credential.DeactivatedAt,
			&credential.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan provider credential: %w", err)
		}
		items = append(items, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider credentials: %w", err)
	}
	return items, nil
}

// InsertCredential stores a new credential.
func (p *Pool) InsertCredential(ctx context.Context, credential keypool.Credential) error {
	const q = `
INSERT INTO voiceqc.provider_credentials (
	credential_uuid,
	label,
	secret_value,
	active,
	created_at
)
VALUES ($1::uuid, $2, $3, $4, $5)
`

	if _, err := p.Exec(
		ctx,
		q,
		strings.TrimSpace(credential.ID),
		credential.Label,
		credential.Secret,
		credential.Active,
		credential.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert provider credential: %w", err)
	}
	return nil
}

// UpdateCredentialHealth persists the mutable health counters.
func (p *Pool) UpdateCredentialHealth(ctx context.Context, credential keypool.Credential) error {
	const q = `
UPDATE voiceqc.provider_credentials
SET
	active = $2,
	success_count = $3,
	failure_count = $4,
	consecutive_failures = $5,
	last_used_at = $6,
	last_failure_at = $7,
	deactivated_at = $8
WHERE credential_uuid = $1::uuid
`

	tag, err := p.Exec(
		ctx,
		q,
		strings.TrimSpace(credential.ID),
		credential.Active,
		credential.SuccessCount,
		credential.FailureCount,
		credential.ConsecutiveFailures,
		credential.LastUsedAt,
		credential.LastFailureAt,
		credential.DeactivatedAt,
	)
	if err != nil {
		return fmt.Errorf("update provider credential health: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return keypool.ErrCredentialNotFound
	}
	return nil
}

// DeleteCredential removes a credential permanently.
func (p *Pool) DeleteCredential(ctx context.Context, id string) error {
	const q = `
DELETE FROM voiceqc.provider_credentials
WHERE credential_uuid = $1::uuid
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete provider credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return keypool.ErrCredentialNotFound
	}
	return nil
}

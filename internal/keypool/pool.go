package keypool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voiceqc.dev/voiceqc/internal/globaltime"
)

// DeactivateThreshold is the number of consecutive failures after which a
// credential is pulled out of rotation.
const DeactivateThreshold = 5

var (
	ErrNoActiveCredential = errors.New("no active credential available")
	ErrCredentialNotFound = errors.New("credential not found")
)

// Credential is one provider API key with its health state.
type Credential struct {
	ID                  string
	Label               string
	Secret              string
	Active              bool
	SuccessCount        int
	FailureCount        int
	ConsecutiveFailures int
	LastUsedAt          *time.Time
	LastFailureAt       *time.Time
	DeactivatedAt       *time.Time
	CreatedAt           time.Time
}

// HealthSnapshot is the read-only reporting view of a credential. It
// never carries the secret.
type HealthSnapshot struct {
	ID                  string     `json:"credential_uuid"`
	Label               string     `json:"label"`
	Active              bool       `json:"active"`
	SuccessCount        int        `json:"success_count"`
	FailureCount        int        `json:"failure_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastUsedAt          *time.Time `json:"last_used_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	DeactivatedAt       *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Store persists credential state across restarts.
type Store interface {
	ListCredentials(ctx context.Context) ([]Credential, error)
	InsertCredential(ctx context.Context, credential Credential) error
	UpdateCredentialHealth(ctx context.Context, credential Credential) error
	DeleteCredential(ctx context.Context, id string) error
}

// Pool holds the in-memory credential set. One mutex serializes every
// mutation; at most maxConcurrent job runners contend on it.
type Pool struct {
	mu     sync.Mutex
	store  Store
	creds  map[string]*Credential
	logger zerolog.Logger
}

func New(store Store, logger zerolog.Logger) *Pool {
	return &Pool{
		store:  store,
		creds:  make(map[string]*Credential),
		logger: logger,
	}
}

// Load replaces the in-memory set with the stored credentials.
func (p *Pool) Load(ctx context.Context) error {
	if p == nil || p.store == nil {
		return fmt.Errorf("key pool is not initialized")
	}

	stored, err := p.store.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = make(map[string]*Credential, len(stored))
	for i := range stored {
		credential := stored[i]
		p.creds[credential.ID] = &credential
	}
	return nil
}

// SelectActive returns the active credential that was least recently
// used (nil lastUsedAt sorts first), distributing load round-robin.
func (p *Pool) SelectActive() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Credential
	for _, credential := range p.creds {
		if !credential.Active {
			continue
		}
		if best == nil || lessRecentlyUsed(credential, best) {
			best = credential
		}
	}
	if best == nil {
		return Credential{}, ErrNoActiveCredential
	}
	return *best, nil
}

func lessRecentlyUsed(a, b *Credential) bool {
	switch {
	case a.LastUsedAt == nil && b.LastUsedAt == nil:
		return a.ID < b.ID
	case a.LastUsedAt == nil:
		return true
	case b.LastUsedAt == nil:
		return false
	case a.LastUsedAt.Equal(*b.LastUsedAt):
		return a.ID < b.ID
	default:
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
}

// RecordSuccess marks a successful provider call against a credential.
func (p *Pool) RecordSuccess(ctx context.Context, id string) error {
	p.mu.Lock()
	credential, ok := p.creds[id]
	if !ok {
		p.mu.Unlock()
		return ErrCredentialNotFound
	}

	now := globaltime.UTC()
	credential.LastUsedAt = &now
	credential.SuccessCount++
	credential.ConsecutiveFailures = 0
	updated := *credential
	p.mu.Unlock()

	return p.persistHealth(ctx, updated)
}

// RecordFailure marks a failed provider call. Crossing the consecutive
// failure threshold deactivates the credential.
func (p *Pool) RecordFailure(ctx context.Context, id string) error {
	p.mu.Lock()
	credential, ok := p.creds[id]
	if !ok {
		p.mu.Unlock()
		return ErrCredentialNotFound
	}

	now := globaltime.UTC()
	credential.LastFailureAt = &now
	credential.FailureCount++
	credential.ConsecutiveFailures++
	if credential.ConsecutiveFailures >= DeactivateThreshold && credential.Active {
		credential.Active = false
		credential.DeactivatedAt = &now
		p.logger.Warn().
			Str("credential_uuid", credential.ID).
			Str("label", credential.Label).
			Int("consecutive_failures", credential.ConsecutiveFailures).
			Msg("credential deactivated after repeated failures")
	}
	updated := *credential
	p.mu.Unlock()

	return p.persistHealth(ctx, updated)
}

// Reactivate puts a deactivated credential back into rotation. Historical
// success/failure counters are kept.
func (p *Pool) Reactivate(ctx context.Context, id string) error {
	p.mu.Lock()
	credential, ok := p.creds[id]
	if !ok {
		p.mu.Unlock()
		return ErrCredentialNotFound
	}

	credential.Active = true
	credential.ConsecutiveFailures = 0
	credential.DeactivatedAt = nil
	updated := *credential
	p.mu.Unlock()

	p.logger.Info().Str("credential_uuid", id).Msg("credential reactivated")
	return p.persistHealth(ctx, updated)
}

// Add creates a new active credential.
func (p *Pool) Add(ctx context.Context, id, label, secret string) (Credential, error) {
	if id == "" {
		return Credential{}, fmt.Errorf("credential id is required")
	}
	if secret == "" {
		return Credential{}, fmt.Errorf("credential secret is required")
	}

	credential := Credential{
		ID:        id,
		Label:     label,
		Secret:    secret,
		Active:    true,
		CreatedAt: globaltime.UTC(),
	}

	if p.store != nil {
		if err := p.store.InsertCredential(ctx, credential); err != nil {
			return Credential{}, fmt.Errorf("insert credential: %w", err)
		}
	}

	p.mu.Lock()
	stored := credential
	p.creds[credential.ID] = &stored
	p.mu.Unlock()

	return credential, nil
}

// Remove deletes a credential. Irreversible.
func (p *Pool) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	_, ok := p.creds[id]
	if !ok {
		p.mu.Unlock()
		return ErrCredentialNotFound
	}
	delete(p.creds, id)
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.DeleteCredential(ctx, id); err != nil {
			return fmt.Errorf("delete credential: %w", err)
		}
	}
	return nil
}

// Snapshot returns the health view of every credential, newest first.
func (p *Pool) Snapshot() []HealthSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make([]HealthSnapshot, 0, len(p.creds))
	for _, credential := range p.creds {
		items = append(items, HealthSnapshot{
			ID:                  credential.ID,
			Label:               credential.Label,
			Active:              credential.Active,
			SuccessCount:        credential.SuccessCount,
			FailureCount:        credential.FailureCount,
			ConsecutiveFailures: credential.ConsecutiveFailures,
			LastUsedAt:          credential.LastUsedAt,
			LastFailureAt:       credential.LastFailureAt,
			DeactivatedAt:       credential.DeactivatedAt,
			CreatedAt:           credential.CreatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (p *Pool) persistHealth(ctx context.Context, credential Credential) error {
	if p.store == nil {
		return nil
	}
	if err := p.store.UpdateCredentialHealth(ctx, credential); err != nil {
		return fmt.Errorf("persist credential health: %w", err)
	}
	return nil
}

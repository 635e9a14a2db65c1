package keypool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voiceqc.dev/voiceqc/internal/globaltime"
)

type stubCredentialStore struct {
	mu         sync.Mutex
	listed     []Credential
	inserted   []Credential
	updated    []Credential
	deletedIDs []string
	listErr    error
}

func (s *stubCredentialStore) ListCredentials(_ context.Context) ([]Credential, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listed, nil
}

func (s *stubCredentialStore) InsertCredential(_ context.Context, credential Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, credential)
	return nil
}

func (s *stubCredentialStore) UpdateCredentialHealth(_ context.Context, credential Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, credential)
	return nil
}

func (s *stubCredentialStore) DeleteCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

func newTestPool(t *testing.T, store *stubCredentialStore) *Pool {
	t.Helper()
	pool := New(store, zerolog.Nop())
	if err := pool.Load(context.Background()); err != nil {
		t.Fatalf("load pool: %v", err)
	}
	return pool
}

func TestSelectActivePrefersLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	store := &stubCredentialStore{listed: []Credential{
		{ID: "a", Secret: "s-a", Active: true, LastUsedAt: &t1},
		{ID: "b", Secret: "s-b", Active: true, LastUsedAt: &t2},
	}}
	pool := newTestPool(t, store)

	selected, err := pool.SelectActive()
	if err != nil {
		t.Fatalf("select active: %v", err)
	}
	if selected.ID != "a" {
		t.Fatalf("expected least recently used credential a, got %q", selected.ID)
	}
}

func TestSelectActiveNeverUsedSortsFirst(t *testing.T) {
	t.Parallel()

	used := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := &stubCredentialStore{listed: []Credential{
		{ID: "used", Secret: "s1", Active: true, LastUsedAt: &used},
		{ID: "fresh", Secret: "s2", Active: true},
	}}
	pool := newTestPool(t, store)

	selected, err := pool.SelectActive()
	if err != nil {
		t.Fatalf("select active: %v", err)
	}
	if selected.ID != "fresh" {
		t.Fatalf("expected never-used credential first, got %q", selected.ID)
	}
}

func TestSelectActiveSkipsInactive(t *testing.T) {
	t.Parallel()

	store := &stubCredentialStore{listed: []Credential{
		{ID: "dead", Secret: "s1", Active: false},
	}}
	pool := newTestPool(t, store)

	if _, err := pool.SelectActive(); !errors.Is(err, ErrNoActiveCredential) {
		t.Fatalf("expected ErrNoActiveCredential, got %v", err)
	}
}

func TestRecordFailureDeactivatesAtThreshold(t *testing.T) {
	t.Parallel()

	store := &stubCredentialStore{listed: []Credential{
		{ID: "k", Secret: "s", Active: true},
	}}
	pool := newTestPool(t, store)
	ctx := context.Background()

	for i := 0; i < DeactivateThreshold-1; i++ {
		if err := pool.RecordFailure(ctx, "k"); err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
		if _, err := pool.SelectActive(); err != nil {
			t.Fatalf("credential deactivated too early after %d failures", i+1)
		}
	}

	if err := pool.RecordFailure(ctx, "k"); err != nil {
		t.Fatalf("record final failure: %v", err)
	}

	if _, err := pool.SelectActive(); !errors.Is(err, ErrNoActiveCredential) {
		t.Fatalf("expected credential to be deactivated, got %v", err)
	}

	snapshot := pool.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("unexpected snapshot length: %d", len(snapshot))
	}
	if snapshot[0].Active {
		t.Fatalf("expected inactive credential")
	}
	if snapshot[0].DeactivatedAt == nil {
		t.Fatalf("expected deactivatedAt to be set")
	}
	if snapshot[0].FailureCount != DeactivateThreshold {
		t.Fatalf("unexpected failure count: %d", snapshot[0].FailureCount)
	}
}

func TestReactivateRestoresSelectability(t *testing.T) {
	t.Parallel()

	deactivated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := &stubCredentialStore{listed: []Credential{
		{
			ID:                  "k",
			Secret:              "s",
			Active:              false,
			FailureCount:        7,
			SuccessCount:        3,
			ConsecutiveFailures: DeactivateThreshold,
			DeactivatedAt:       &deactivated,
		},
	}}
	pool := newTestPool(t, store)
	ctx := context.Background()

	if err := pool.Reactivate(ctx, "k"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	selected, err := pool.SelectActive()
	if err != nil {
		t.Fatalf("select after reactivate: %v", err)
	}
	if selected.ID != "k" {
		t.Fatalf("unexpected credential: %q", selected.ID)
	}
	if selected.ConsecutiveFailures != 0 {
		t.Fatalf("expected consecutive failures reset, got %d", selected.ConsecutiveFailures)
	}
	if selected.DeactivatedAt != nil {
		t.Fatalf("expected deactivatedAt cleared")
	}
	if selected.FailureCount != 7 || selected.SuccessCount != 3 {
		t.Fatalf("historical counters must persist: %+v", selected)
	}
}

func TestRecordSuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	globaltime.SetMockTime(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store := &stubCredentialStore{listed: []Credential{
		{ID: "k", Secret: "s", Active: true, ConsecutiveFailures: 3, FailureCount: 3},
	}}
	pool := newTestPool(t, store)
	ctx := context.Background()

	if err := pool.RecordSuccess(ctx, "k"); err != nil {
		t.Fatalf("record success: %v", err)
	}

	snapshot := pool.Snapshot()
	if snapshot[0].ConsecutiveFailures != 0 {
		t.Fatalf("expected consecutive failures reset, got %d", snapshot[0].ConsecutiveFailures)
	}
	if snapshot[0].SuccessCount != 1 {
		t.Fatalf("unexpected success count: %d", snapshot[0].SuccessCount)
	}
	if snapshot[0].LastUsedAt == nil || !snapshot[0].LastUsedAt.Equal(globaltime.UTC()) {
		t.Fatalf("expected lastUsedAt stamped")
	}

	store.mu.Lock()
	updates := len(store.updated)
	store.mu.Unlock()
	if updates != 1 {
		t.Fatalf("expected health persisted once, got %d", updates)
	}
}

func TestConcurrentOutcomeRecording(t *testing.T) {
	t.Parallel()

	store := &stubCredentialStore{listed: []Credential{
		{ID: "k", Secret: "s", Active: true},
	}}
	pool := newTestPool(t, store)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = pool.RecordSuccess(ctx, "k")
			}
		}()
	}
	wg.Wait()

	snapshot := pool.Snapshot()
	if snapshot[0].SuccessCount != workers*perWorker {
		t.Fatalf("lost counter updates: got %d want %d", snapshot[0].SuccessCount, workers*perWorker)
	}
}

func TestAddAndRemove(t *testing.T) {
	t.Parallel()

	store := &stubCredentialStore{}
	pool := newTestPool(t, store)
	ctx := context.Background()

	credential, err := pool.Add(ctx, "new-id", "deepgram-primary", "secret-value")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !credential.Active {
		t.Fatalf("expected new credential active")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected insert persisted")
	}

	if err := pool.Remove(ctx, "new-id"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := pool.SelectActive(); !errors.Is(err, ErrNoActiveCredential) {
		t.Fatalf("expected empty pool after remove, got %v", err)
	}
	if err := pool.Remove(ctx, "new-id"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestSnapshotOmitsSecret(t *testing.T) {
	t.Parallel()

	store := &stubCredentialStore{listed: []Credential{
		{ID: "k", Secret: "super-secret", Active: true},
	}}
	pool := newTestPool(t, store)

	snapshot := pool.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("unexpected snapshot length: %d", len(snapshot))
	}
	// HealthSnapshot has no secret field; this guards against one being
	// added later and leaking through the admin API.
	if snapshot[0].Label == "super-secret" {
		t.Fatalf("secret leaked into label")
	}
}

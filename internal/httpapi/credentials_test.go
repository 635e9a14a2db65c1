package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"voiceqc.dev/voiceqc/internal/auth"
	"voiceqc.dev/voiceqc/internal/keypool"
	"voiceqc.dev/voiceqc/internal/progress"
	"voiceqc.dev/voiceqc/internal/queue"
)

type memoryCredentialStore struct{}

func (memoryCredentialStore) ListCredentials(_ context.Context) ([]keypool.Credential, error) {
	return []keypool.Credential{
		{ID: "11111111-1111-1111-1111-111111111111", Label: "primary", Secret: "sk-super-secret", Active: true},
	}, nil
}
func (memoryCredentialStore) InsertCredential(_ context.Context, _ keypool.Credential) error {
	return nil
}
func (memoryCredentialStore) UpdateCredentialHealth(_ context.Context, _ keypool.Credential) error {
	return nil
}
func (memoryCredentialStore) DeleteCredential(_ context.Context, _ string) error {
	return nil
}

func newTestServer(t *testing.T, adminTokenHash string) *Server {
	t.Helper()

	keys := keypool.New(memoryCredentialStore{}, zerolog.Nop())
	if err := keys.Load(context.Background()); err != nil {
		t.Fatalf("load key pool: %v", err)
	}

	jobQueue := queue.New(2, func(context.Context, string) {}, zerolog.Nop())
	reporter := progress.NewReporter(zerolog.Nop())

	return NewServer(nil, jobQueue, keys, reporter, zerolog.Nop(), Options{
		AdminTokenHash: adminTokenHash,
	})
}

func doRequest(t *testing.T, s *Server, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(adminTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	s.buildEcho().ServeHTTP(rec, req)
	return rec
}

func TestAdminAPIDisabledWithoutTokenHash(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, "")
	rec := doRequest(t, s, http.MethodGet, "/api/v1/admin/credentials", "any-token", "")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no hash configured, got %d", rec.Code)
	}
}

func TestAdminAPIRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("correct-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	s := newTestServer(t, hash)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/admin/credentials", "wrong-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/admin/credentials", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rec.Code)
	}
}

func TestCredentialListOmitsSecrets(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("correct-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	s := newTestServer(t, hash)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/admin/credentials", "correct-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if strings.Contains(rec.Body.String(), "sk-super-secret") {
		t.Fatalf("credential secret leaked into response: %s", rec.Body.String())
	}

	var envelope struct {
		Status string `json:"status"`
		Data   struct {
			Items []keypool.HealthSnapshot `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Status != "success" || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestCredentialAddRequiresSecret(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("correct-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	s := newTestServer(t, hash)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/admin/credentials", "correct-token", `{"label":"spare"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without secret, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/admin/credentials", "correct-token", `{"label":"spare","secret":"sk-new"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "sk-new") {
		t.Fatalf("new credential secret echoed back: %s", rec.Body.String())
	}
}

func TestCredentialRemoveNotFound(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashToken("correct-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	s := newTestServer(t, hash)

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/admin/credentials/does-not-exist", "correct-token", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown credential, got %d", rec.Code)
	}
}

package auth

import "testing"

func TestHashAndVerifyToken(t *testing.T) {
	t.Parallel()

	hash, err := HashToken("vq-admin-token")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyToken("vq-admin-token", hash) {
		t.Fatalf("expected token verification to succeed")
	}
	if VerifyToken("wrong-token", hash) {
		t.Fatalf("did not expect wrong token to verify")
	}
	if VerifyToken("vq-admin-token", "") {
		t.Fatalf("did not expect empty hash to verify")
	}
}

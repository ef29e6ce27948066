package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestGeneratePKCE(t *testing.T) {
	pkce, err := GeneratePKCE()
	if err != nil {
		t.Fatalf("GeneratePKCE() error = %v", err)
	}

	// 96 raw bytes encode to 128 base64url characters, the RFC 7636 maximum
	if len(pkce.CodeVerifier) != 128 {
		t.Errorf("CodeVerifier length = %d, want 128", len(pkce.CodeVerifier))
	}

	if pkce.CodeChallengeMethod != "S256" {
		t.Errorf("CodeChallengeMethod = %q, want %q", pkce.CodeChallengeMethod, "S256")
	}

	// Verify challenge is the S256 hash of the encoded verifier
	hash := sha256.Sum256([]byte(pkce.CodeVerifier))
	expectedChallenge := base64.RawURLEncoding.EncodeToString(hash[:])
	if pkce.CodeChallenge != expectedChallenge {
		t.Errorf("CodeChallenge = %q, want %q", pkce.CodeChallenge, expectedChallenge)
	}
}

func TestGeneratePKCE_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pkce, err := GeneratePKCE()
		if err != nil {
			t.Fatalf("GeneratePKCE() error = %v", err)
		}
		if seen[pkce.CodeVerifier] {
			t.Fatal("duplicate code verifier generated")
		}
		seen[pkce.CodeVerifier] = true
	}
}

func TestGeneratePKCERaw_ChallengeMatchesVerifier(t *testing.T) {
	for i := 0; i < 20; i++ {
		verifier, challenge, err := GeneratePKCERaw()
		if err != nil {
			t.Fatalf("GeneratePKCERaw() error = %v", err)
		}
		if !VerifyChallenge(verifier, challenge) {
			t.Errorf("VerifyChallenge(%q, %q) = false, want true", verifier, challenge)
		}
	}
}

func TestVerifyChallenge_Mismatch(t *testing.T) {
	verifier, challenge, err := GeneratePKCERaw()
	if err != nil {
		t.Fatalf("GeneratePKCERaw() error = %v", err)
	}

	if VerifyChallenge(verifier+"x", challenge) {
		t.Error("VerifyChallenge accepted a tampered verifier")
	}
	if VerifyChallenge(verifier, challenge[:len(challenge)-1]) {
		t.Error("VerifyChallenge accepted a truncated challenge")
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	// 32 bytes encode to 43 base64url characters
	if len(state) != 43 {
		t.Errorf("state length = %d, want 43", len(state))
	}

	other, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if state == other {
		t.Error("two GenerateState calls returned the same value")
	}
}

package secrets

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newPair(t *testing.T) (*Service, string) {
	t.Helper()
	recipient, identity, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	svc, err := NewService(&Config{Recipient: recipient, Identity: identity}, testLogger())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc, identity
}

// For any secret value, sealing and then opening returns the original value.
func TestSealOpenRoundTrip(t *testing.T) {
	svc, _ := newPair(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("seal then open returns original plaintext", prop.ForAll(
		func(vals []uint8) bool {
			plaintext := make([]byte, len(vals))
			copy(plaintext, vals)

			sealed, err := svc.Seal(plaintext)
			if err != nil {
				t.Logf("seal failed: %v", err)
				return false
			}
			opened, err := svc.Open(sealed)
			if err != nil {
				t.Logf("open failed: %v", err)
				return false
			}
			return bytes.Equal(plaintext, opened)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestSealIsArmored(t *testing.T) {
	svc, _ := newPair(t)

	sealed, err := svc.Seal([]byte("gk-token"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(sealed, "-----BEGIN AGE ENCRYPTED FILE-----") {
		t.Errorf("sealed output is not armored: %q", sealed)
	}
	if strings.Contains(sealed, "gk-token") {
		t.Error("sealed output contains the plaintext")
	}
}

func TestResolveToken(t *testing.T) {
	svc, identity := newPair(t)
	sealed, err := svc.Seal([]byte("sealed-token\n"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	identityFile := filepath.Join(t.TempDir(), "key.txt")
	if err := os.WriteFile(identityFile, []byte("# created for tests\n"+identity+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		plain    string
		sealed   string
		identity string
		want     string
		wantErr  error
	}{
		{"nothing configured", "", "", "", "", nil},
		{"plain wins", "plain-token", sealed, identity, "plain-token", nil},
		{"inline identity", "", sealed, identity, "sealed-token", nil},
		{"identity file", "", sealed, identityFile, "sealed-token", nil},
		{"missing identity", "", sealed, "", "", ErrNoIdentity},
		{"missing identity file", "", sealed, filepath.Join(t.TempDir(), "nope"), "", ErrInvalidKey},
		{"garbage ciphertext", "", "not armored", identity, "", ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveToken(tt.plain, tt.sealed, tt.identity, testLogger())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenWithWrongIdentity(t *testing.T) {
	svc, _ := newPair(t)
	other, _ := newPair(t)

	sealed, err := svc.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := other.Open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestServiceWithoutKeys(t *testing.T) {
	svc, err := NewService(&Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.CanSeal() || svc.CanOpen() {
		t.Error("empty service should not seal or open")
	}
	if _, err := svc.Seal([]byte("x")); err != ErrNoRecipient {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
	if _, err := svc.Open("x"); err != ErrNoIdentity {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	if _, err := NewService(&Config{Recipient: "age1invalid"}, testLogger()); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for recipient, got %v", err)
	}
	if _, err := NewService(&Config{Identity: "AGE-SECRET-KEY-1BROKEN"}, testLogger()); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for identity, got %v", err)
	}
}

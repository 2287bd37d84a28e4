package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genSubject generates a non-empty viewer subject.
func genSubject() gopter.Gen {
	return gen.Identifier().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 255
	})
}

// genSecret generates a 32-byte HMAC secret.
func genSecret() gopter.Gen {
	return gen.SliceOfN(32, gen.UInt8()).Map(func(vals []uint8) []byte {
		out := make([]byte, len(vals))
		copy(out, vals)
		return out
	})
}

func newService(secret []byte, expiry time.Duration) *Service {
	return NewService(&Config{JWTSecret: secret, TokenExpiry: expiry}, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("generate then validate preserves the viewer", prop.ForAll(
		func(subject, email string, secret []byte) bool {
			svc := newService(secret, time.Hour)

			token, err := svc.GenerateToken(subject, email)
			if err != nil {
				return false
			}
			viewer, err := svc.ValidateToken(token)
			if err != nil {
				return false
			}
			return viewer.Subject == subject && viewer.Email == email
		},
		genSubject(),
		gen.AlphaString(),
		genSecret(),
	))

	properties.TestingRun(t)
}

func TestWrongSecretRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens signed with another secret are rejected", prop.ForAll(
		func(subject string, secret1, secret2 []byte) bool {
			if string(secret1) == string(secret2) {
				return true
			}
			token, err := newService(secret1, time.Hour).GenerateToken(subject, "")
			if err != nil {
				return false
			}
			viewer, err := newService(secret2, time.Hour).ValidateToken(token)
			return err != nil && viewer == nil
		},
		genSubject(),
		genSecret(),
		genSecret(),
	))

	properties.TestingRun(t)
}

func TestValidateTokenErrors(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	svc := newService(secret, time.Hour)

	expired, err := newService(secret, -time.Hour).GenerateToken("ops", "")
	if err != nil {
		t.Fatal(err)
	}

	wrongAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"aud": "gatekeeper-admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": Audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrInvalidToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"wrong audience", wrongAudience, ErrInvalidToken},
		{"missing subject", noSubject, ErrMissingClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer, err := svc.ValidateToken(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if viewer != nil {
				t.Errorf("viewer should be nil, got %+v", viewer)
			}
		})
	}
}

func TestGenerateTokenRequiresSubject(t *testing.T) {
	if _, err := newService([]byte("x"), time.Hour).GenerateToken("", "a@b.c"); !errors.Is(err, ErrMissingClaims) {
		t.Errorf("expected ErrMissingClaims, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"none", func(r *http.Request) {}, ""},
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc"},
		{"basic ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ""},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=q1" }, "q1"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "c1"}) }, "c1"},
		{"header beats cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer h1")
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "c1"})
		}, "h1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestViewerName(t *testing.T) {
	if (&Viewer{Subject: "u1", Email: "a@b.c"}).Name() != "a@b.c" {
		t.Error("email should be preferred")
	}
	if (&Viewer{Subject: "u1"}).Name() != "u1" {
		t.Error("subject should be the fallback")
	}
}

package security

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"familydose/internal/models"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "password123"},
		{name: "complex password", password: "P@ssw0rd!#$%"},
		{name: "unicode password", password: "비밀번호1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, bcrypt.MinCost)
			if err != nil {
				t.Fatalf("HashPassword() error = %v", err)
			}
			if hash == tt.password {
				t.Error("HashPassword() returned the plain password")
			}
			if !CheckPassword(hash, tt.password) {
				t.Error("CheckPassword() rejected the correct password")
			}
			if CheckPassword(hash, tt.password+"x") {
				t.Error("CheckPassword() accepted a wrong password")
			}
		})
	}
}

func TestTokenIssuer(t *testing.T) {
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	now := start
	ti := NewTokenIssuer("test-secret", time.Hour)
	ti.now = func() time.Time { return now }

	user := &models.User{ID: "mom", Role: models.RoleParent, Connect: "ABCD2345"}
	token, expires, err := ti.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if !expires.Equal(start.Add(time.Hour)) {
		t.Errorf("expires = %v, want %v", expires, start.Add(time.Hour))
	}

	t.Run("valid token round trips", func(t *testing.T) {
		claims, err := ti.Parse(token)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if claims.Subject != "mom" || claims.Role != models.RoleParent || claims.Connect != "ABCD2345" {
			t.Errorf("claims = %+v", claims)
		}
		if claims.ID == "" {
			t.Error("expected a token id")
		}
		actor := claims.Actor()
		if actor.UserID != "mom" || actor.Role != models.RoleParent {
			t.Errorf("Actor() = %+v", actor)
		}
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		other := NewTokenIssuer("other-secret", time.Hour)
		other.now = ti.now
		if _, err := other.Parse(token); err != ErrInvalidToken {
			t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		if _, err := ti.Parse(token + "x"); err != ErrInvalidToken {
			t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		claims := Claims{
			Role:             models.Role("admin"),
			RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(start.Add(time.Hour))},
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ti.Parse(forged); err != ErrInvalidToken {
			t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		now = start.Add(2 * time.Hour)
		defer func() { now = start }()
		if _, err := ti.Parse(token); err != ErrInvalidToken {
			t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewRateLimiter(clock, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("fourth attempt should be refused")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other keys have their own allowance")
	}

	clock.Advance(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("allowance should reset after the window")
	}

	clock.Advance(time.Minute)
	rl.Sweep()
	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("Sweep() left %d buckets", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "forwarded chain uses first hop",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 172.16.0.1"},
			want:    "10.0.0.1",
		},
		{
			name:    "real ip header",
			headers: map[string]string{"X-Real-IP": "10.0.0.2"},
			want:    "10.0.0.2",
		},
		{
			name:   "remote addr without port",
			remote: "192.168.1.5:43210",
			want:   "192.168.1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(""))
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/household", nil)
	if id := RequestID(r); len(id) != 36 {
		t.Errorf("generated id = %q, want a UUID", id)
	}

	r.Header.Set(RequestIDHeader, "dispenser-42.boot")
	if id := RequestID(r); id != "dispenser-42.boot" {
		t.Errorf("RequestID() = %q, want the supplied id", id)
	}

	r.Header.Set(RequestIDHeader, "bad id with spaces\n")
	if id := RequestID(r); id == "bad id with spaces\n" {
		t.Error("malformed id should be replaced")
	}
}

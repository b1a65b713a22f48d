package matchtoken

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func fixedCodec(secret string, ttl time.Duration, at time.Time) *Codec {
	c := New(secret, ttl)
	c.now = func() time.Time { return at }
	return c
}

func TestCodec_IssueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("test-secret", 2*time.Minute, now)

	issued := c.Issue("ds-1", "m_7", "m_7")
	if got := strings.Count(issued.Token, "."); got != 2 {
		t.Fatalf("token segment separators = %d, want 2", got)
	}

	payload, ok := c.Verify(issued.Token)
	if !ok {
		t.Fatal("Verify() failed for freshly issued token")
	}
	if payload.ServerID != "ds-1" || payload.RoomID != "m_7" || payload.MatchID != "m_7" {
		t.Errorf("claims mismatch\n got=%#v", payload)
	}
	if !payload.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("expiry = %v, want %v", payload.ExpiresAt, now.Add(2*time.Minute))
	}
	if !payload.ExpiresAt.Equal(issued.Payload.ExpiresAt) {
		t.Errorf("issued payload expiry mismatch\n got=%v\nwant=%v", issued.Payload.ExpiresAt, payload.ExpiresAt)
	}
}

func TestCodec_TTLFloor(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("s", 0, now)

	issued := c.Issue("ds", "r", "m")
	if !issued.Payload.ExpiresAt.Equal(now.Add(time.Second)) {
		t.Errorf("expiry = %v, want ttl floored to 1s", issued.Payload.ExpiresAt)
	}
}

func TestCodec_VerifyRejectsTampering(t *testing.T) {
	c := New("test-secret", time.Minute)
	issued := c.Issue("ds-1", "room-1", "match-1")
	segments := strings.Split(issued.Token, ".")

	flip := func(s string) string {
		b := []byte(s)
		if b[0] == 'a' {
			b[0] = 'b'
		} else {
			b[0] = 'a'
		}
		return string(b)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"blank", ""},
		{"whitespace", "   "},
		{"two segments", segments[0] + "." + segments[1]},
		{"four segments", issued.Token + ".extra"},
		{"version mismatch", "v2." + segments[1] + "." + segments[2]},
		{"tampered payload", segments[0] + "." + flip(segments[1]) + "." + segments[2]},
		{"tampered signature", segments[0] + "." + segments[1] + "." + flip(segments[2])},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := c.Verify(tt.token); ok {
				t.Errorf("Verify(%q) accepted, want rejection", tt.token)
			}
		})
	}
}

func TestCodec_VerifyAcceptsUppercaseHeaderAndSignature(t *testing.T) {
	c := New("test-secret", time.Minute)
	issued := c.Issue("ds-1", "room-1", "match-1")
	segments := strings.Split(issued.Token, ".")

	token := strings.ToUpper(segments[0]) + "." + segments[1] + "." + strings.ToUpper(segments[2])
	if _, ok := c.Verify(token); !ok {
		t.Error("Verify() rejected token with uppercase header and hex signature")
	}
}

func TestCodec_VerifyRejectsMalformedClaims(t *testing.T) {
	c := New("test-secret", time.Minute)

	// Forge structurally valid tokens with a correct signature so that only
	// the claims checks can reject them.
	forge := func(body string) string {
		encoded := base64.RawURLEncoding.EncodeToString([]byte(body))
		return Version + "." + encoded + "." + c.sign(Version+"."+encoded)
	}

	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"missing dsId", `{"roomId":"r","matchId":"m","exp":"2025-06-01T12:00:00Z"}`},
		{"blank roomId", `{"dsId":"d","roomId":" ","matchId":"m","exp":"2025-06-01T12:00:00Z"}`},
		{"missing exp", `{"dsId":"d","roomId":"r","matchId":"m"}`},
		{"bad exp", `{"dsId":"d","roomId":"r","matchId":"m","exp":"tomorrow"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := c.Verify(forge(tt.body)); ok {
				t.Errorf("Verify() accepted forged claims %q", tt.body)
			}
		})
	}
}

func TestCodec_VerifyDifferentSecret(t *testing.T) {
	issued := New("secret-a", time.Minute).Issue("ds", "r", "m")
	if _, ok := New("secret-b", time.Minute).Verify(issued.Token); ok {
		t.Error("Verify() accepted token signed with a different secret")
	}
}

func TestCodec_ExpiryIsCallerChecked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("s", time.Second, now)
	issued := c.Issue("ds", "r", "m")

	// Verification itself still succeeds after the TTL has elapsed; the
	// returned expiry is what callers compare against their clock.
	c.now = func() time.Time { return now.Add(time.Hour) }
	payload, ok := c.Verify(issued.Token)
	if !ok {
		t.Fatal("Verify() structural check failed for expired token")
	}
	if !payload.ExpiresAt.Before(c.now()) {
		t.Error("expected payload expiry in the past relative to verification time")
	}
}

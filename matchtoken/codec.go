package matchtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Version tags the first segment of every start token this codec produces.
const Version = "v1"

// Payload holds the verified claims of a start token.
type Payload struct {
	Version   string
	ServerID  string
	RoomID    string
	MatchID   string
	ExpiresAt time.Time
}

// Issued pairs a wire token with the claims baked into it.
type Issued struct {
	Token   string
	Payload Payload
}

// claims is the JSON body of the middle token segment.
type claims struct {
	ServerID string `json:"dsId"`
	RoomID   string `json:"roomId"`
	MatchID  string `json:"matchId"`
	Expiry   string `json:"exp"`
}

// Codec issues and verifies start tokens of the form
// "<version>.<base64url(json-claims)>.<hex-signature>". The signature is an
// HMAC-SHA256 over the first two segments, keyed with the shared secret.
//
// Verify deliberately does not compare the expiry against the current time;
// callers own that check so they can apply clock-skew tolerance.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Codec {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a token binding the given server/room/match triple plus an
// expiry of now+TTL.
func (c *Codec) Issue(serverID, roomID, matchID string) Issued {
	expiresAt := c.now().Add(c.ttl).UTC()

	body, err := json.Marshal(claims{
		ServerID: serverID,
		RoomID:   roomID,
		MatchID:  matchID,
		Expiry:   expiresAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		// claims is a flat struct of strings; this cannot happen at runtime
		log.Panic().Err(err).Msg("token: failed to encode claims")
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	token := Version + "." + encoded + "." + c.sign(Version+"."+encoded)

	log.Info().
		Str("ds", serverID).
		Str("room", roomID).
		Str("match", matchID).
		Time("exp", expiresAt).
		Int("len", len(token)).
		Msg("token: issued")

	return Issued{
		Token: token,
		Payload: Payload{
			Version:   Version,
			ServerID:  serverID,
			RoomID:    roomID,
			MatchID:   matchID,
			ExpiresAt: expiresAt,
		},
	}
}

// Verify checks the structure and signature of a token and returns its claims.
// It returns false on blank input, wrong segment count, version mismatch,
// signature mismatch, malformed base64 or JSON, missing claim fields, or an
// unparseable expiry.
func (c *Codec) Verify(token string) (Payload, bool) {
	if strings.TrimSpace(token) == "" {
		log.Warn().Msg("token: verify failed, empty token")
		return Payload{}, false
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		log.Warn().Int("segments", len(segments)).Str("prefix", preview(token, 12)).Msg("token: verify failed, invalid segment count")
		return Payload{}, false
	}

	header, payloadB64, signature := segments[0], segments[1], segments[2]

	if !strings.EqualFold(header, Version) {
		log.Warn().Str("header", header).Msg("token: verify failed, version mismatch")
		return Payload{}, false
	}

	expected := c.sign(header + "." + payloadB64)
	if !strings.EqualFold(expected, signature) {
		log.Warn().Str("prefix", preview(token, 12)).Msg("token: verify failed, signature mismatch")
		return Payload{}, false
	}

	body, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		log.Warn().Str("prefix", preview(payloadB64, 12)).Msg("token: verify failed, base64 decode error")
		return Payload{}, false
	}

	var cl claims
	if err := json.Unmarshal(body, &cl); err != nil {
		log.Warn().Str("prefix", preview(token, 12)).Msg("token: verify failed, malformed claims")
		return Payload{}, false
	}
	if blank(cl.ServerID) || blank(cl.RoomID) || blank(cl.MatchID) || blank(cl.Expiry) {
		log.Warn().Str("prefix", preview(token, 12)).Msg("token: verify failed, missing claim fields")
		return Payload{}, false
	}

	expiresAt, err := time.Parse(time.RFC3339, cl.Expiry)
	if err != nil {
		log.Warn().Str("exp", cl.Expiry).Msg("token: verify failed, unparseable expiry")
		return Payload{}, false
	}

	log.Debug().Str("ds", cl.ServerID).Str("room", cl.RoomID).Str("match", cl.MatchID).Time("exp", expiresAt).Msg("token: verify success")
	return Payload{
		Version:   header,
		ServerID:  cl.ServerID,
		RoomID:    cl.RoomID,
		MatchID:   cl.MatchID,
		ExpiresAt: expiresAt,
	}, true
}

func (c *Codec) sign(message string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func preview(value string, visible int) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) <= visible {
		return value
	}
	return value[:visible]
}

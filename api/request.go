package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var errPlayerIDRequired = errors.New("PLAYER_ID_REQUIRED")

// forwardedHeaders are checked in order for the original client address when
// the service sits behind proxies or a CDN.
var forwardedHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Client-IP",
	"X-Forwarded",
	"Forwarded",
	"Forwarded-For",
}

// requirePlayerID extracts the caller's opaque player id from the
// X-Player-Id header. Identity is supplied, not authenticated.
func requirePlayerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get("X-Player-Id"))
	if id == "" {
		return "", errPlayerIDRequired
	}
	return id, nil
}

// resolveNickname returns the display name, defaulting to the player id.
func resolveNickname(r *http.Request) string {
	if nick := strings.TrimSpace(r.Header.Get("X-Player-Nickname")); nick != "" {
		return nick
	}
	id, _ := requirePlayerID(r)
	return id
}

// resolveRemoteAddress finds the client's network address, preferring
// forwarded headers over the socket peer.
func resolveRemoteAddress(r *http.Request) string {
	for _, header := range forwardedHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		address := value
		if idx := strings.IndexByte(value, ','); idx >= 0 {
			address = value[:idx]
		}
		address = strings.TrimSpace(address)
		if address != "" && !strings.EqualFold(address, "unknown") {
			return address
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// mask shortens an identifier for logs: a short visible prefix plus length.
func mask(value string) string {
	if strings.TrimSpace(value) == "" {
		return "<empty>"
	}
	visible := len(value)
	if visible > 4 {
		visible = 4
	}
	return value[:visible] + "*** (len=" + strconv.Itoa(len(value)) + ")"
}

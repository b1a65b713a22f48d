package config

import (
	"net"
	"strings"
)

// GameHost describes the fallback host endpoint advertised for rooms when a
// room host has no better address on record, plus the policy for choosing
// between public and internal addresses per requester.
type GameHost struct {
	Address         string `default:""`
	InternalAddress string `default:""`
	PreferInternal  bool   `default:"false"`
	Port            int    `default:"7777"`
}

// AddressSelection is the outcome of picking an endpoint for one client.
type AddressSelection struct {
	PublicAddress    string
	InternalAddress  string
	PreferredAddress string
}

// ResolvePublicAddress picks the configured public address, falling back to
// the configured internal address and then the candidate.
func (g *GameHost) ResolvePublicAddress(candidate string) string {
	if v := strings.TrimSpace(g.Address); v != "" {
		return v
	}
	if v := strings.TrimSpace(g.InternalAddress); v != "" {
		return v
	}
	return strings.TrimSpace(candidate)
}

// ResolveInternalAddress picks the configured internal address, falling back
// to the candidate and then the public address.
func (g *GameHost) ResolveInternalAddress(candidate string) string {
	if v := strings.TrimSpace(g.InternalAddress); v != "" {
		return v
	}
	if v := strings.TrimSpace(candidate); v != "" {
		return v
	}
	return g.ResolvePublicAddress("")
}

// ResolvePort accepts a candidate only when it matches the configured port.
func (g *GameHost) ResolvePort(candidate int) int {
	if candidate > 0 && candidate == g.Port {
		return candidate
	}
	return g.Port
}

// ShouldUseInternalFor reports whether a requester at the given address
// should be handed the internal endpoint.
func (g *GameHost) ShouldUseInternalFor(requesterAddress string) bool {
	if !g.PreferInternal {
		return false
	}
	trimmed := strings.TrimSpace(requesterAddress)
	if trimmed == "" {
		return true
	}
	return isInternalNetwork(trimmed)
}

// SelectForClient normalizes a public/internal address pair and picks the one
// the requester should connect to.
func (g *GameHost) SelectForClient(publicAddress, internalAddress, requesterAddress string) AddressSelection {
	public := strings.TrimSpace(publicAddress)
	internal := strings.TrimSpace(internalAddress)

	if public == "" && internal != "" {
		public = internal
	}
	if internal == "" && public != "" {
		internal = public
	}

	preferred := public
	if g.ShouldUseInternalFor(requesterAddress) && internal != "" {
		preferred = internal
	}

	return AddressSelection{
		PublicAddress:    public,
		InternalAddress:  internal,
		PreferredAddress: preferred,
	}
}

func isInternalNetwork(address string) bool {
	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
}

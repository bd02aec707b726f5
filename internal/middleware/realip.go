// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/tomtom215/custodia/internal/logging"
)

// Forwarding headers consulted in priority order when the peer is a
// trusted proxy.
const (
	trueClientIPHeader  = "True-Client-IP"
	xRealIPHeader       = "X-Real-IP"
	xForwardedForHeader = "X-Forwarded-For"
)

// TrustedRealIP rewrites RemoteAddr from forwarding headers, but only
// when the connection peer is one of the configured trusted proxies.
// Directly-connecting clients cannot spoof their address: their headers
// are ignored and RemoteAddr stays the socket peer. With an empty proxy
// list no header is ever honored.
//
// Entries are IPs or CIDRs ("10.0.0.5", "10.0.0.0/8"). Invalid entries
// are logged and skipped. Mount before the blocked-IP guard and the
// rate limiter so both see the resolved client address.
func TrustedRealIP(trustedProxies []string) func(http.HandlerFunc) http.HandlerFunc {
	nets := parseProxyList(trustedProxies)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if peerIsTrusted(r.RemoteAddr, nets) {
				if ip := forwardedClientIP(r); ip != "" {
					r.RemoteAddr = ip
				}
			}
			next(w, r)
		}
	}
}

// parseProxyList converts proxy entries into networks. Bare IPs become
// single-host networks.
func parseProxyList(entries []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logging.Warn().Str("entry", entry).Msg("Ignoring invalid trusted proxy entry")
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// peerIsTrusted reports whether the socket peer belongs to a trusted
// proxy network.
func peerIsTrusted(remoteAddr string, nets []*net.IPNet) bool {
	if len(nets) == 0 {
		return false
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// forwardedClientIP extracts the client address a trusted proxy reports.
// Returns "" when no header carries a valid IP.
func forwardedClientIP(r *http.Request) string {
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get(trueClientIPHeader))); ip != nil {
		return ip.String()
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get(xRealIPHeader))); ip != nil {
		return ip.String()
	}
	forwarded := r.Header.Get(xForwardedForHeader)
	if forwarded == "" {
		return ""
	}
	// The leftmost entry is the originating client; later hops append.
	first := forwarded
	if idx := strings.Index(forwarded, ","); idx >= 0 {
		first = forwarded[:idx]
	}
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip.String()
	}
	return ""
}

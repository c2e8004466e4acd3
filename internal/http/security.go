package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// securityMetrics counts security events surfaced in request logs.
type securityMetrics struct {
	rateLimitHits      int64
	invalidIPAttempts  int64
	suspiciousRequests int64
}

// trustedProxies are the networks allowed to set forwarding headers. The
// dashboard sits behind a local reverse proxy at most, so only loopback and
// private ranges qualify.
var trustedProxies = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad trusted proxy CIDR %s: %v", cidr, err))
		}
		nets = append(nets, network)
	}
	return nets
}()

func fromTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP resolves the client address, honoring forwarding headers
// only when the direct peer is a trusted proxy.
func extractClientIP(r *http.Request, metrics *securityMetrics) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil {
		if metrics != nil {
			atomic.AddInt64(&metrics.invalidIPAttempts, 1)
		}
		return directIP
	}
	if !fromTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}

// Probe paths and tooling with no business against a personal work log.
// Plain API clients (curl and friends) are deliberately not listed, /api is
// meant for scripting.
var (
	suspiciousFragments = []string{
		"../", "..\\", ".env", ".git", ".ssh",
		"etc/passwd", "wp-admin", "admin.php",
		"<script", "javascript:", "union select",
	}
	suspiciousAgents = []string{
		"sqlmap", "nikto", "nmap", "gobuster", "dirb", "masscan", "scanner",
	}
)

// detectSuspiciousRequest flags request shapes outside the dashboard's
// surface: probe paths, scanner agents, unusual methods, oversized URLs,
// absurd proxy chains.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	suspicious := false

	target := strings.ToLower(r.URL.Path)
	if q := r.URL.RawQuery; q != "" {
		target += "?" + strings.ToLower(q)
	}
	for _, fragment := range suspiciousFragments {
		if strings.Contains(target, fragment) {
			suspicious = true
			break
		}
	}

	if !suspicious {
		agent := strings.ToLower(r.Header.Get("User-Agent"))
		for _, probe := range suspiciousAgents {
			if strings.Contains(agent, probe) {
				suspicious = true
				break
			}
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "CONNECT":
		suspicious = true
	}

	if len(r.URL.String()) > 2048 {
		suspicious = true
	}

	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > 5 {
		suspicious = true
	}

	if suspicious && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return suspicious
}

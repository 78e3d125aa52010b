package tenant

import (
	"net"
	"strings"
)

// SubdomainFromHost derives a candidate tenant subdomain from a request host.
// Returns "" when the host carries no candidate.
//
// Rules, in order: the port is stripped; bare loopback hosts yield nothing
// (the header or deployment default decides the dev tenant); for
// "*.localhost" hosts the first label is the candidate unless it is literally
// "localhost"; a leading "www" or "app" label is dropped; with three or more
// remaining labels the first one is the candidate ("acme.api.example.com" →
// "acme").
func SubdomainFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" || host == "[::1]" {
		return ""
	}

	parts := strings.Split(host, ".")
	for _, part := range parts {
		if part == "localhost" {
			if parts[0] == "localhost" {
				return ""
			}
			return parts[0]
		}
	}

	if parts[0] == "www" || parts[0] == "app" {
		parts = parts[1:]
	}
	if len(parts) >= 3 {
		return parts[0]
	}
	return ""
}

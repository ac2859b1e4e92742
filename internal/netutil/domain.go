// Package netutil holds the small HTTP helpers shared by the delivery and
// transform packages.
package netutil

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ExtractDomain extracts the effective top-level-domain-plus-one (eTLD+1)
// from a target string that may be host:port, a URL, an IPv6 address, etc.
//
// Examples:
//
//	"https://img.cdn.example.co.uk/x" -> "example.co.uk"
//	"assets.example.com:443"          -> "example.com"
//	"192.168.1.1:8080"                -> "192.168.1.1"
//	"[::1]:80"                        -> "::1"
func ExtractDomain(target string) string {
	host := Hostname(target)
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	// IP addresses, localhost and internal names.
	return host
}

// Hostname returns the bare host of a URL or host:port string, without port
// or IPv6 brackets.
func Hostname(target string) string {
	if strings.Contains(target, "://") || strings.HasPrefix(target, "//") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			target = u.Host
		}
	}
	if h, _, err := net.SplitHostPort(target); err == nil {
		return h
	}
	if strings.HasPrefix(target, "[") && strings.HasSuffix(target, "]") {
		return target[1 : len(target)-1]
	}
	return target
}

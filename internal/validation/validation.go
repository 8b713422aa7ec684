package validation

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// HostnamePattern matches a DNS hostname with at least one dot.
var HostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// LocationPattern allows place names such as "São Paulo, BR" or "St. John's".
var LocationPattern = regexp.MustCompile(`^[\p{L}\p{N} ,.'-]+$`)

// MaxLocationLength bounds the location forwarded into model prompts.
const MaxLocationLength = 100

// NormalizeHostname lowercases a hostname and strips scheme, path, port and a leading "www.".
func NormalizeHostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Host
		}
	}
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// ValidateHostname checks that host is a plain DNS name after normalization.
func ValidateHostname(host string) bool {
	host = NormalizeHostname(host)
	if host == "" || len(host) > 253 {
		return false
	}
	return HostnamePattern.MatchString(host)
}

// NormalizeLocation trims and collapses whitespace in a location.
// Returns false if the location contains disallowed characters or is too long.
// An empty location is valid.
func NormalizeLocation(location string) (string, bool) {
	location = strings.Join(strings.Fields(location), " ")
	if location == "" {
		return "", true
	}
	if len([]rune(location)) > MaxLocationLength {
		return "", false
	}
	if !LocationPattern.MatchString(location) {
		return "", false
	}
	return location, true
}

// ParseLimit parses a list limit, falling back to def when raw is empty or
// invalid and capping at max.
func ParseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

package extract

import (
	"net/url"
	"strings"

	"github.com/devx/appads-extractor/internal/models"
)

// normalizeAndValidate strips scheme/www/path/query from a raw extracted
// URL and validates the remaining host as a hostname: labels separated by
// '.', TLD at least 2 characters. mailto, empty, and relative-without-host
// URLs are rejected.
func normalizeAndValidate(raw string) (models.DeveloperDomain, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		return "", false
	}

	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	} else if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
		return "", false
	} else {
		// Relative path without a host, e.g. "/developer/123" — reject.
		if strings.HasPrefix(raw, "/") {
			return "", false
		}
		host = raw
	}

	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if strings.ContainsAny(host, "/?#") {
		host = strings.SplitN(host, "/", 2)[0]
		host = strings.SplitN(host, "?", 2)[0]
		host = strings.SplitN(host, "#", 2)[0]
	}

	if !isValidHostname(host) {
		return "", false
	}
	return models.DeveloperDomain(host), true
}

func isValidHostname(host string) bool {
	if host == "" {
		return false
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}

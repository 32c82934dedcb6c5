package http

import (
	"fmt"
	"net/url"
	"strings"
)

// JoinURL appends one service path segment to a base URL.
func JoinURL(base, service string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(service, "/")
}

// ValidateBaseURL checks that uri is an absolute http(s) URL.
func ValidateBaseURL(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported scheme %q in %s", u.Scheme, uri)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %s", uri)
	}
	return nil
}

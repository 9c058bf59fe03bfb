// Package socksproxy has the SOCKS5 proxy records the backend can route
// IMAP/SMTP connections through, and parsing/validation of their URLs.
package socksproxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

var ErrBadProxyURL = errors.New("bad socks5 proxy url")

// Record is a proxy as the backend serves it. The URL is submitted and
// updated as text/plain.
type Record struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ParseURL parses and validates a SOCKS5 proxy URL: scheme socks5 or socks5h,
// a host and a port, optional userinfo.
func ParseURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProxyURL, err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("%w: scheme must be socks5 or socks5h, got %q", ErrBadProxyURL, u.Scheme)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" || port == "" {
		return nil, fmt.Errorf("%w: host:port required", ErrBadProxyURL)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("%w: path not allowed", ErrBadProxyURL)
	}
	return u, nil
}

// Dialer returns a dialer that connects through the proxy, for verifying a
// proxy record locally.
func (r Record) Dialer() (proxy.Dialer, error) {
	u, err := ParseURL(r.URL)
	if err != nil {
		return nil, err
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadProxyURL, err)
	}
	return d, nil
}

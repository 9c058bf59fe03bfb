// Package accesstoken has the access token entity and its editor: scoped
// bearer tokens bound to a set of accounts, optionally guarded by an IP
// allow-list and a token-bucket rate limit.
package accesstoken

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Scope is a namespace of API surface a token may reach.
type Scope string

const (
	ScopeAPI     Scope = "Api"
	ScopeMetrics Scope = "Metrics"
)

// AccountRef identifies an account a token is authorized for.
type AccountRef struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// RateLimit is a token-bucket limit: quota requests per interval.
type RateLimit struct {
	Quota           uint32 `json:"quota"`
	IntervalSeconds uint32 `json:"interval_seconds"`
}

// Limiter returns a token bucket for this limit, quota tokens refilled evenly
// over the interval, with bursts up to the full quota.
func (rl RateLimit) Limiter() *rate.Limiter {
	interval := time.Duration(rl.IntervalSeconds) * time.Second
	if rl.Quota == 0 || interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(rl.Quota)/interval.Seconds()), int(rl.Quota))
}

// ACL restricts where and how often a token may be used. Absent sub-fields
// mean unrestricted.
type ACL struct {
	IPWhitelist []string   `json:"ip_whitelist,omitempty"`
	RateLimit   *RateLimit `json:"rate_limit,omitempty"`
}

// PermitsIP returns whether addr is allowed by the IP allow-list. An empty
// list allows all addresses.
func (a ACL) PermitsIP(addr netip.Addr) bool {
	if len(a.IPWhitelist) == 0 {
		return true
	}
	for _, s := range a.IPWhitelist {
		ip, err := netip.ParseAddr(s)
		if err == nil && ip == addr {
			return true
		}
	}
	return false
}

// AccessToken is a server-generated bearer token with its authorization
// scope. Timestamps are in epoch milliseconds, like the backend serves them.
type AccessToken struct {
	Token        string       `json:"token"`
	Accounts     []AccountRef `json:"accounts"`
	AccessScopes []Scope      `json:"access_scopes"`
	ACL          *ACL         `json:"acl,omitempty"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    int64        `json:"created_at"`
	UpdatedAt    int64        `json:"updated_at"`
	LastAccessAt int64        `json:"last_access_at"`
}

// FieldError is a validation error for a single form field, surfaced inline.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Form is the in-progress token editor state. The IP allow-list is edited as
// newline-delimited text, normalized on submit.
type Form struct {
	Accounts        []AccountRef
	AccessScopes    []Scope
	Description     string
	IPWhitelistText string
	Quota           *uint32
	IntervalSeconds *uint32
}

// NormalizeIPList trims each entry, drops empties and deduplicates preserving
// first occurrence. Normalizing an already normalized list is a no-op.
func NormalizeIPList(l []string) []string {
	var r []string
	seen := map[string]bool{}
	for _, s := range l {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		r = append(r, s)
	}
	return r
}

// ipList returns the normalized entries of the edited allow-list text.
func (f Form) ipList() []string {
	return NormalizeIPList(strings.Split(f.IPWhitelistText, "\n"))
}

// Validate checks the form. A nil return means valid.
func (f Form) Validate() []FieldError {
	var errs []FieldError

	if len(f.Accounts) == 0 {
		errs = append(errs, FieldError{"accounts", "at least one account required"})
	}
	if len(f.AccessScopes) == 0 {
		errs = append(errs, FieldError{"access_scopes", "at least one scope required"})
	}
	for _, s := range f.AccessScopes {
		if s != ScopeAPI && s != ScopeMetrics {
			errs = append(errs, FieldError{"access_scopes", fmt.Sprintf("unknown scope %q", s)})
		}
	}
	if len(f.Description) > 255 {
		errs = append(errs, FieldError{"description", "at most 255 characters"})
	}
	for _, s := range f.ipList() {
		addr, err := netip.ParseAddr(s)
		if err != nil || addr.Zone() != "" {
			errs = append(errs, FieldError{"ip_whitelist", fmt.Sprintf("not an IPv4/IPv6 address: %q", s)})
		}
	}
	if f.Quota != nil && *f.Quota == 0 {
		errs = append(errs, FieldError{"quota", "must be a positive integer"})
	}
	if f.IntervalSeconds != nil && *f.IntervalSeconds == 0 {
		errs = append(errs, FieldError{"interval_seconds", "must be a positive integer"})
	}
	if (f.Quota == nil) != (f.IntervalSeconds == nil) {
		errs = append(errs, FieldError{"rate_limit", "quota and interval must be set together"})
	}
	return errs
}

// Request is the create/update submission body. Create returns the opaque
// token string; update is keyed by the token and leaves last_access_at
// untouched.
type Request struct {
	Accounts     []AccountRef `json:"accounts"`
	AccessScopes []Scope      `json:"access_scopes"`
	ACL          *ACL         `json:"acl,omitempty"`
	Description  string       `json:"description,omitempty"`
}

// Submit normalizes the form into the wire shape. An ACL with neither an
// allow-list nor a rate limit is omitted entirely, as is a rate limit with
// neither field.
func (f Form) Submit() Request {
	req := Request{
		Accounts:     f.Accounts,
		AccessScopes: f.AccessScopes,
		Description:  f.Description,
	}
	ips := f.ipList()
	var rl *RateLimit
	if f.Quota != nil && f.IntervalSeconds != nil {
		rl = &RateLimit{Quota: *f.Quota, IntervalSeconds: *f.IntervalSeconds}
	}
	if len(ips) > 0 || rl != nil {
		req.ACL = &ACL{IPWhitelist: ips, RateLimit: rl}
	}
	return req
}

// Package oauth2client has the OAuth2 client records the console manages:
// provider endpoints and credentials used to obtain and refresh tokens on
// behalf of accounts. The console only edits these records, the backend runs
// the actual authorization flows.
package oauth2client

import (
	"fmt"
	"net/url"
	"strings"
)

// CallbackPath is the fixed path suffix every redirect URI must end with. The
// host and port must match the deploying origin.
const CallbackPath = "/oauth2/callback"

// Mode distinguishes creating a new client record from updating an existing
// one. On update an absent client secret means "unchanged".
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Param is a single extra authorization parameter. Parameters are edited as
// an ordered list and serialized to a mapping on submit.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entity is an OAuth2 client record as the backend serves it. The client
// secret is write-only: it is never returned.
//
// Disabling a client has immediate effect server-side: new authorization
// flows are rejected at once and existing access and refresh tokens are
// revoked within a minute. After re-enabling, users must authorize again.
type Entity struct {
	ID          int64  `json:"id"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`

	ClientID    string `json:"client_id"`
	AuthURL     string `json:"auth_url"`
	TokenURL    string `json:"token_url"`
	RedirectURI string `json:"redirect_uri"`

	Scopes      []string          `json:"scopes,omitempty"`
	ExtraParams map[string]string `json:"extra_params,omitempty"`
	UseProxy    *int64            `json:"use_proxy,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// FieldError is a validation error for a single form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Form is the in-progress editor state for a client record. Scopes and extra
// params are ordered; order is preserved on submit.
type Form struct {
	Description  string
	ClientID     string
	ClientSecret string // Required on create, blank on update means unchanged.
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scopes       []string
	ExtraParams  []Param
	UseProxy     *int64
	Enabled      bool
}

func validAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks the form for the given mode. A nil return means valid.
func (f Form) Validate(mode Mode) []FieldError {
	var errs []FieldError

	if f.ClientID == "" {
		errs = append(errs, FieldError{"client_id", "required"})
	}
	if mode == ModeCreate && f.ClientSecret == "" {
		errs = append(errs, FieldError{"client_secret", "required"})
	}
	if len(f.Description) > 255 {
		errs = append(errs, FieldError{"description", "at most 255 characters"})
	}

	urls := []struct{ field, value string }{
		{"auth_url", f.AuthURL},
		{"token_url", f.TokenURL},
		{"redirect_uri", f.RedirectURI},
	}
	for _, u := range urls {
		if u.value == "" {
			errs = append(errs, FieldError{u.field, "required"})
		} else if !validAbsoluteURL(u.value) {
			errs = append(errs, FieldError{u.field, "must be an absolute http(s) URL"})
		}
	}
	if validAbsoluteURL(f.RedirectURI) {
		u, _ := url.Parse(f.RedirectURI)
		if u.Path != CallbackPath {
			errs = append(errs, FieldError{"redirect_uri", fmt.Sprintf("path must be %s", CallbackPath)})
		}
	}

	for i, s := range f.Scopes {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("scopes.%d", i), "empty scope"})
		}
	}
	for i, p := range f.ExtraParams {
		if strings.TrimSpace(p.Key) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("extra_params.%d.key", i), "empty key"})
		}
		if strings.TrimSpace(p.Value) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("extra_params.%d.value", i), "empty value"})
		}
	}
	return errs
}

// Request is the create/update submission body. ClientSecret is omitted when
// blank, which on update means the stored secret is kept.
type Request struct {
	Description  string            `json:"description,omitempty"`
	Enabled      bool              `json:"enabled"`
	ClientID     string            `json:"client_id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	AuthURL      string            `json:"auth_url"`
	TokenURL     string            `json:"token_url"`
	RedirectURI  string            `json:"redirect_uri"`
	Scopes       []string          `json:"scopes,omitempty"`
	ExtraParams  map[string]string `json:"extra_params,omitempty"`
	UseProxy     *int64            `json:"use_proxy,omitempty"`
}

// Submit turns the form into the wire shape, serializing the extra params
// list to a mapping. Scope order is preserved.
func (f Form) Submit(mode Mode) Request {
	req := Request{
		Description: f.Description,
		Enabled:     f.Enabled,
		ClientID:    f.ClientID,
		AuthURL:     f.AuthURL,
		TokenURL:    f.TokenURL,
		RedirectURI: f.RedirectURI,
		Scopes:      f.Scopes,
		UseProxy:    f.UseProxy,
	}
	// Blank secret is omitted from the payload. Validate has already required
	// one for create, so an update never transmits a secret the user did not
	// enter.
	req.ClientSecret = f.ClientSecret
	if len(f.ExtraParams) > 0 {
		req.ExtraParams = map[string]string{}
		for _, p := range f.ExtraParams {
			req.ExtraParams[p.Key] = p.Value
		}
	}
	return req
}

// Preset fills empty provider fields for a known provider, leaving fields the
// user already changed alone. Known providers are "gmail" and "outlook".
func (f *Form) Preset(provider string) bool {
	var auth, token string
	var scopes []string
	var extra []Param
	switch strings.ToLower(provider) {
	case "gmail":
		auth = "https://accounts.google.com/o/oauth2/v2/auth"
		token = "https://oauth2.googleapis.com/token"
		scopes = []string{"https://mail.google.com/"}
		extra = []Param{{"access_type", "offline"}, {"prompt", "consent"}}
	case "outlook":
		auth = "https://login.microsoftonline.com/consumers/oauth2/v2.0/authorize"
		token = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
		scopes = []string{"Mail.ReadWrite", "Mail.Send", "offline_access"}
		extra = []Param{{"prompt", "consent"}}
	default:
		return false
	}
	if f.AuthURL == "" {
		f.AuthURL = auth
	}
	if f.TokenURL == "" {
		f.TokenURL = token
	}
	if len(f.Scopes) == 0 {
		f.Scopes = scopes
	}
	if len(f.ExtraParams) == 0 {
		f.ExtraParams = extra
	}
	return true
}

// DanglingProxies returns the IDs of proxies referenced by entities but not
// present in known, to surface as warnings on load. The backend contract for
// a deleted proxy that is still referenced is unspecified, so references are
// checked client-side.
func DanglingProxies(entities []Entity, known map[int64]bool) []int64 {
	var r []int64
	seen := map[int64]bool{}
	for _, e := range entities {
		if e.UseProxy == nil {
			continue
		}
		id := *e.UseProxy
		if !known[id] && !seen[id] {
			seen[id] = true
			r = append(r, id)
		}
	}
	return r
}

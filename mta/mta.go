// Package mta has the outbound mail transfer agent records: SMTP servers the
// backend submits messages through, with credentials, optional SOCKS5 proxy
// and DSN capability.
package mta

import (
	"fmt"
	"strings"
)

// Encryption is the transport security used when connecting to the SMTP
// server.
type Encryption string

const (
	EncryptionNone     Encryption = "None"
	EncryptionSSL      Encryption = "Ssl"
	EncryptionStartTLS Encryption = "StartTls"
)

// Mode distinguishes creating a record from updating one. On update a blank
// password means "unchanged".
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Record is an MTA as the backend serves it. The password is write-only.
type Record struct {
	ID          int64      `json:"id"`
	Description string     `json:"description,omitempty"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	Encryption  Encryption `json:"encryption"`
	Username    string     `json:"username,omitempty"`
	UseProxy    *int64     `json:"use_proxy,omitempty"`
	DSNCapable  bool       `json:"dsn_capable"`
	CreatedAt   int64      `json:"created_at"`
	UpdatedAt   int64      `json:"updated_at"`
}

// FieldError is a validation error for a single form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Form is the in-progress MTA editor state.
type Form struct {
	Description string
	Host        string
	Port        int
	Encryption  Encryption
	Username    string
	Password    string // Required on create, blank on update means unchanged.
	UseProxy    *int64
	DSNCapable  bool
}

// ValidPort returns whether p is usable as SMTP submission port: in
// [1,65535], and not one of the well-known HTTP ports.
func ValidPort(p int) bool {
	if p < 1 || p > 65535 {
		return false
	}
	return p != 80 && p != 443
}

// Validate checks the form for the given mode. A nil return means valid.
func (f Form) Validate(mode Mode) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(f.Host) == "" {
		errs = append(errs, FieldError{"host", "required"})
	}
	if !ValidPort(f.Port) {
		errs = append(errs, FieldError{"port", fmt.Sprintf("port %d not allowed, must be 1-65535 and not 80 or 443", f.Port)})
	}
	switch f.Encryption {
	case EncryptionNone, EncryptionSSL, EncryptionStartTLS:
	default:
		errs = append(errs, FieldError{"encryption", fmt.Sprintf("unknown encryption %q", f.Encryption)})
	}
	if f.Username == "" {
		errs = append(errs, FieldError{"username", "required"})
	}
	if mode == ModeCreate && f.Password == "" {
		errs = append(errs, FieldError{"password", "required"})
	}
	return errs
}

// Request is the create/update submission body. A blank password is omitted,
// keeping the stored password on update.
type Request struct {
	Description string     `json:"description,omitempty"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	Encryption  Encryption `json:"encryption"`
	Username    string     `json:"username"`
	Password    string     `json:"password,omitempty"`
	UseProxy    *int64     `json:"use_proxy,omitempty"`
	DSNCapable  bool       `json:"dsn_capable"`
}

// Submit turns the form into the wire shape.
func (f Form) Submit() Request {
	return Request{
		Description: f.Description,
		Host:        strings.TrimSpace(f.Host),
		Port:        f.Port,
		Encryption:  f.Encryption,
		Username:    f.Username,
		Password:    f.Password,
		UseProxy:    f.UseProxy,
		DSNCapable:  f.DSNCapable,
	}
}

// SendTestRequest asks the backend to submit a test message through an MTA.
type SendTestRequest struct {
	To string `json:"to"`
}

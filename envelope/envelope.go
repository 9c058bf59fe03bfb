// Package envelope has the domain types for stored messages as the admin
// console sees them: envelopes (message metadata without the MIME body),
// mailboxes, the search filter DSL and the flag mutation model.
package envelope

import (
	"time"
)

// Address is a single address in an envelope header.
type Address struct {
	Name    string `json:"name,omitempty"` // Free-form display name.
	Address string `json:"address"`        // localpart@domain.
}

// Envelope is the metadata of a stored message, distinct from its MIME body.
// UIDs are stable per mailbox.
type Envelope struct {
	UID       uint32    `json:"uid"`
	Mailbox   string    `json:"mailbox"`
	MessageID string    `json:"message_id,omitempty"`
	Subject   string    `json:"subject"`
	From      []Address `json:"from,omitempty"`
	To        []Address `json:"to,omitempty"`
	Cc        []Address `json:"cc,omitempty"`
	Bcc       []Address `json:"bcc,omitempty"`
	ReplyTo   []Address `json:"reply_to,omitempty"`
	InReplyTo string    `json:"in_reply_to,omitempty"`
	Date      time.Time `json:"date"`     // From the message headers.
	Received  time.Time `json:"received"` // Internal date, when the store received the message.
	Size      int64     `json:"size"`
	Flags     []Flag    `json:"flags,omitempty"`

	// Attachment file names, for list display. Contents are fetched separately.
	Attachments []string `json:"attachments,omitempty"`
}

// Mailbox is a folder in an account message store.
type Mailbox struct {
	Name       string   `json:"name"` // Full hierarchical name.
	Delimiter  string   `json:"delimiter,omitempty"`
	Attributes []string `json:"attributes,omitempty"` // E.g. \NoSelect, \HasChildren.
	Total      uint32   `json:"total"`
	Unseen     uint32   `json:"unseen"`
}

// NoSelect returns whether the mailbox cannot hold messages and only exists
// for hierarchy.
func (mb Mailbox) NoSelect() bool {
	for _, a := range mb.Attributes {
		if a == `\NoSelect` || a == `\Noselect` {
			return true
		}
	}
	return false
}

package envelope

import (
	"errors"
	"fmt"
	"strings"
)

// Standard flag names. Anything else is a custom flag (IMAP keyword).
const (
	FlagSeen      = "Seen"
	FlagAnswered  = "Answered"
	FlagFlagged   = "Flagged"
	FlagDeleted   = "Deleted"
	FlagDraft     = "Draft"
	FlagRecent    = "Recent"
	FlagMayCreate = "MayCreate"
	flagCustom    = "Custom"
)

var standardFlags = map[string]bool{
	FlagSeen:      true,
	FlagAnswered:  true,
	FlagFlagged:   true,
	FlagDeleted:   true,
	FlagDraft:     true,
	FlagRecent:    true,
	FlagMayCreate: true,
}

// Flag is a message flag, either one of the standard flags or a custom
// keyword. On the wire a custom flag is {"flag":"Custom","custom":"<name>"},
// a standard flag has a null custom name.
type Flag struct {
	Flag   string  `json:"flag"`
	Custom *string `json:"custom"`
}

// Standard returns a standard flag. It panics on unknown names, which would
// be a bug in the calling code.
func Standard(name string) Flag {
	if !standardFlags[name] {
		panic(fmt.Sprintf("not a standard flag: %q", name))
	}
	return Flag{Flag: name}
}

// Custom returns a custom flag (keyword) with the given name. The name is not
// validated here, staging validates.
func Custom(name string) Flag {
	return Flag{Flag: flagCustom, Custom: &name}
}

// IsCustom returns whether the flag is a custom keyword.
func (f Flag) IsCustom() bool {
	return f.Flag == flagCustom
}

// Name returns the display name: the standard flag name, or the custom
// keyword.
func (f Flag) Name() string {
	if f.IsCustom() && f.Custom != nil {
		return *f.Custom
	}
	return f.Flag
}

// Equal returns whether two flags are the same flag. Custom names are
// compared case-insensitively, like IMAP keywords.
func (f Flag) Equal(o Flag) bool {
	if f.Flag != o.Flag {
		return false
	}
	if !f.IsCustom() {
		return true
	}
	if f.Custom == nil || o.Custom == nil {
		return f.Custom == o.Custom
	}
	return strings.EqualFold(*f.Custom, *o.Custom)
}

// ValidCustomFlagName returns whether s is a valid custom flag name: a
// non-empty printable ASCII atom of at most 255 characters, without
// whitespace and without the special characters from the IMAP grammar.
func ValidCustomFlagName(s string) bool {
	if len(s) == 0 || len(s) > 255 {
		return false
	}
	const atomspecials = `(){%*"\]`
	for _, c := range s {
		if c <= ' ' || c > 0x7e || strings.ContainsRune(atomspecials, c) {
			return false
		}
	}
	return true
}

// FlagAction selects how staged flags are applied to the flags already on the
// messages.
type FlagAction string

const (
	FlagAdd       FlagAction = "add"
	FlagRemove    FlagAction = "remove"
	FlagOverwrite FlagAction = "overwrite"
)

var (
	ErrDuplicateFlag   = errors.New("flag already staged")
	ErrInvalidFlagName = errors.New("invalid flag name")
	ErrNoFlags         = errors.New("no flags staged")
	ErrNoUIDs          = errors.New("no messages selected")
	ErrBadAction       = errors.New("unknown flag action")
	ErrNoMailbox       = errors.New("no mailbox")
)

// FlagMutation stages a batch of flag changes for a UID set in one mailbox.
// Flags form a set (duplicates are rejected on staging), in insertion order.
// Staged state is kept when a submission fails, so the user can retry.
type FlagMutation struct {
	Action  FlagAction
	Mailbox string

	flags []Flag
	uids  []uint32
}

// NewFlagMutation returns a mutation for the given action on a mailbox.
func NewFlagMutation(action FlagAction, mailbox string) *FlagMutation {
	return &FlagMutation{Action: action, Mailbox: mailbox}
}

// Stage adds a flag to the staged set. Staging the same flag again returns
// ErrDuplicateFlag and leaves the set unchanged. A malformed custom flag name
// returns ErrInvalidFlagName.
func (m *FlagMutation) Stage(f Flag) error {
	if f.IsCustom() {
		if f.Custom == nil || !ValidCustomFlagName(*f.Custom) {
			return fmt.Errorf("%w: %q", ErrInvalidFlagName, f.Name())
		}
	} else if !standardFlags[f.Flag] {
		return fmt.Errorf("%w: %q", ErrInvalidFlagName, f.Flag)
	}
	for _, x := range m.flags {
		if x.Equal(f) {
			return fmt.Errorf("%w: %q", ErrDuplicateFlag, f.Name())
		}
	}
	m.flags = append(m.flags, f)
	return nil
}

// Unstage removes a flag from the staged set. Removing a flag that is not
// staged is not an error.
func (m *FlagMutation) Unstage(f Flag) {
	for i, x := range m.flags {
		if x.Equal(f) {
			m.flags = append(m.flags[:i], m.flags[i+1:]...)
			return
		}
	}
}

// Flags returns the staged flags in insertion order.
func (m *FlagMutation) Flags() []Flag {
	return append([]Flag{}, m.flags...)
}

// Empty returns whether no flags are staged.
func (m *FlagMutation) Empty() bool {
	return len(m.flags) == 0
}

// SetUIDs replaces the UID set, deduplicated preserving first occurrence.
func (m *FlagMutation) SetUIDs(uids []uint32) {
	m.uids = m.uids[:0]
	seen := map[uint32]bool{}
	for _, uid := range uids {
		if !seen[uid] {
			seen[uid] = true
			m.uids = append(m.uids, uid)
		}
	}
}

// Reset clears staged flags and UIDs, for a new batch after a successful
// submission.
func (m *FlagMutation) Reset() {
	m.flags = nil
	m.uids = nil
}

// FlagMessagesRequest is the submission body for a flag mutation.
type FlagMessagesRequest struct {
	UIDs    []uint32        `json:"uids"`
	Mailbox string          `json:"mailbox"`
	Action  FlagActionFlags `json:"action"`
}

// FlagActionFlags carries the staged flags under the selected action. Exactly
// one of the fields is set.
type FlagActionFlags struct {
	Add       []Flag `json:"add,omitempty"`
	Remove    []Flag `json:"remove,omitempty"`
	Overwrite []Flag `json:"overwrite,omitempty"`
}

// Request builds the submission body. It requires a mailbox, staged flags and
// a non-empty UID set.
func (m *FlagMutation) Request() (FlagMessagesRequest, error) {
	if m.Mailbox == "" {
		return FlagMessagesRequest{}, ErrNoMailbox
	}
	if len(m.flags) == 0 {
		return FlagMessagesRequest{}, ErrNoFlags
	}
	if len(m.uids) == 0 {
		return FlagMessagesRequest{}, ErrNoUIDs
	}
	req := FlagMessagesRequest{
		UIDs:    append([]uint32{}, m.uids...),
		Mailbox: m.Mailbox,
	}
	flags := append([]Flag{}, m.flags...)
	switch m.Action {
	case FlagAdd:
		req.Action.Add = flags
	case FlagRemove:
		req.Action.Remove = flags
	case FlagOverwrite:
		req.Action.Overwrite = flags
	default:
		return FlagMessagesRequest{}, fmt.Errorf("%w: %q", ErrBadAction, m.Action)
	}
	return req, nil
}

// Package state persists local console state in a bstore database: the
// bearer credential slot, UI preferences and the last known release version.
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mjl-/bstore"

	"github.com/sparklive/rustmailerctl/mlog"
)

// Credential is the single bearer token slot. There is at most one record,
// with ID 1. The token is written on login, cleared on logout and on a 401
// response from the backend.
type Credential struct {
	ID      int64
	Token   string
	Updated time.Time `bstore:"default now"`
}

// Pref is a single named UI preference, e.g. panel layout or theme.
type Pref struct {
	Name  string
	Value string
}

// Names of well-known preferences.
const (
	PrefPanelLayout     = "react-resizable-panels:layout:mail"
	PrefPanelCollapsed  = "react-resizable-panels:collapsed"
	PrefSelectedAccount = "mailbox:selectedAccountId"
	PrefTheme           = "theme"
)

// LastKnownRelease is the latest release version the user has been notified
// about. At most one record, with ID 1.
type LastKnownRelease struct {
	ID      int64
	Version string
	Checked time.Time `bstore:"default now"`
}

// DBTypes are the types stored in console.db.
var DBTypes = []any{Credential{}, Pref{}, LastKnownRelease{}}

const credentialID = 1

// Store is the opened console state. The credential is additionally kept in
// an in-memory slot so reads don't touch the database: last writer wins, a
// read after a write observes the new value.
type Store struct {
	db    *bstore.DB
	log   mlog.Log
	token atomic.Pointer[string]
}

// Open opens (creating if needed) the console state database at path.
func Open(ctx context.Context, log mlog.Log, path string) (*Store, error) {
	os.MkdirAll(filepath.Dir(path), 0770)
	opts := bstore.Options{Timeout: 5 * time.Second, Perm: 0660, RegisterLogger: log.Logger}
	db, err := bstore.Open(ctx, path, &opts, DBTypes...)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	s := &Store{db: db, log: log}

	cred := Credential{ID: credentialID}
	err = db.Get(ctx, &cred)
	if err != nil && !errors.Is(err, bstore.ErrAbsent) {
		db.Close()
		return nil, fmt.Errorf("reading credential: %w", err)
	}
	s.token.Store(&cred.Token)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the current bearer token, empty when signed out. Lock-free.
func (s *Store) Token() string {
	return *s.token.Load()
}

// SetToken stores a new bearer token, or clears the slot when token is empty.
// The in-memory slot is updated also when persisting fails, so the session
// keeps working; the error is returned for logging.
func (s *Store) SetToken(ctx context.Context, token string) error {
	s.token.Store(&token)
	return s.db.Write(ctx, func(tx *bstore.Tx) error {
		cred := Credential{ID: credentialID}
		err := tx.Get(&cred)
		if errors.Is(err, bstore.ErrAbsent) {
			if token == "" {
				return nil
			}
			return tx.Insert(&Credential{ID: credentialID, Token: token})
		} else if err != nil {
			return err
		}
		if token == "" {
			return tx.Delete(&Credential{ID: credentialID})
		}
		cred.Token = token
		cred.Updated = time.Now()
		return tx.Update(&cred)
	})
}

// Pref returns a preference value, empty when not set.
func (s *Store) Pref(ctx context.Context, name string) (string, error) {
	p := Pref{Name: name}
	err := s.db.Get(ctx, &p)
	if errors.Is(err, bstore.ErrAbsent) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return p.Value, nil
}

// SetPref stores a preference value. An empty value removes the preference.
func (s *Store) SetPref(ctx context.Context, name, value string) error {
	return s.db.Write(ctx, func(tx *bstore.Tx) error {
		p := Pref{Name: name}
		err := tx.Get(&p)
		if errors.Is(err, bstore.ErrAbsent) {
			if value == "" {
				return nil
			}
			return tx.Insert(&Pref{Name: name, Value: value})
		} else if err != nil {
			return err
		}
		if value == "" {
			return tx.Delete(&p)
		}
		p.Value = value
		return tx.Update(&p)
	})
}

// LastKnown returns the last release version the user was notified about,
// empty when never.
func (s *Store) LastKnown(ctx context.Context) (string, error) {
	lk := LastKnownRelease{ID: 1}
	err := s.db.Get(ctx, &lk)
	if errors.Is(err, bstore.ErrAbsent) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return lk.Version, nil
}

// StoreLastKnown stores the last known release version. Future notification
// checks compare against it.
func (s *Store) StoreLastKnown(ctx context.Context, version string) error {
	return s.db.Write(ctx, func(tx *bstore.Tx) error {
		lk := LastKnownRelease{ID: 1}
		err := tx.Get(&lk)
		if errors.Is(err, bstore.ErrAbsent) {
			return tx.Insert(&LastKnownRelease{ID: 1, Version: version})
		} else if err != nil {
			return err
		}
		lk.Version = version
		lk.Checked = time.Now()
		return tx.Update(&lk)
	})
}

//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package sessionstore persists TM1 session identifiers in the operating
// system credential store, so a later process can resume a retained session
// instead of running a fresh handshake.
//
// The macOS Keychain, the Windows Credential Manager and the Linux Secret
// Service are used where available, with an encrypted file fallback.
// Records are keyed by server base URL and user.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99designs/keyring"
)

// ErrNotFound is returned by Load when no session is stored for the server
// and user.
var ErrNotFound = errors.New("sessionstore: no stored session")

const defaultServiceName = "tm1-go-sdk"

// Session is one persisted session record.
type Session struct {
	// BaseURL is the resolved REST API base URL the session belongs to.
	BaseURL string `json:"baseURL"`

	// User is the login name the session was established with. It is empty
	// for token-based authentication modes.
	User string `json:"user,omitempty"`

	// SessionID is the raw TM1SessionId value.
	SessionID string `json:"sessionID"`

	// Version is the server product version observed at the handshake.
	Version string `json:"version,omitempty"`

	// SavedAt records when the session was persisted.
	SavedAt time.Time `json:"savedAt"`
}

// Config controls where sessions persist.
type Config struct {
	// ServiceName namespaces the records in the credential store.
	// It defaults to "tm1-go-sdk".
	ServiceName string

	// FileDir is the directory of the encrypted file fallback used on
	// hosts without a native credential store. It defaults to a dot
	// directory named after ServiceName in the user's home.
	FileDir string

	// FilePassword encrypts the file fallback. When it is empty and the
	// fallback is hit, the password is prompted for on the terminal.
	FilePassword string
}

// Store persists session records in the operating system credential store.
type Store struct {
	ring keyring.Keyring
}

// Open opens the platform credential store.
func Open(cfg Config) (*Store, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	kc := keyring.Config{
		ServiceName:              name,
		KeychainTrustApplication: true,
		PassPrefix:               name,
		WinCredPrefix:            name,
		FileDir:                  cfg.FileDir,
	}
	if kc.FileDir == "" {
		kc.FileDir = "~/." + name
	}
	if cfg.FilePassword != "" {
		kc.FilePasswordFunc = keyring.FixedStringPrompt(cfg.FilePassword)
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, err
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring. Tests pass
// keyring.NewArrayKeyring to stay in memory.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Save persists the session record, replacing any record stored for the
// same server and user. A zero SavedAt is stamped with the current time.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.BaseURL == "" || sess.SessionID == "" {
		return errors.New("sessionstore: session must carry a base URL and a session id")
	}

	rec := *sess
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return err
	}

	return s.ring.Set(keyring.Item{
		Key:   recordKey(rec.BaseURL, rec.User),
		Label: "TM1 session " + rec.BaseURL,
		Data:  data,
	})
}

// Load returns the session stored for the server and user, or ErrNotFound
// when none is stored.
func (s *Store) Load(baseURL, user string) (*Session, error) {
	item, err := s.ring.Get(recordKey(baseURL, user))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err = json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("sessionstore: corrupt record: %v", err)
	}
	return &sess, nil
}

// Delete removes the session stored for the server and user. Deleting a
// session that is not stored is not an error.
func (s *Store) Delete(baseURL, user string) error {
	err := s.ring.Remove(recordKey(baseURL, user))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// recordKey derives the store key. Users compare case-insensitively, the
// way the server treats login names.
func recordKey(baseURL, user string) string {
	if user == "" {
		return baseURL
	}
	return strings.ToLower(user) + "@" + baseURL
}

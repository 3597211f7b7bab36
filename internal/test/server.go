//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package test provides the mock TM1 database the SDK tests run against.
package test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const sessionCookieName = "TM1SessionId"

// Server simulates the session surface of a TM1 database: the handshake on
// the product version resource, session cookies, expiry and session close.
// Entity resources a test needs are registered with Handle; they only serve
// requests carrying a live session.
type Server struct {
	httpServer *httptest.Server
	mux        *http.ServeMux

	mu         sync.Mutex
	user       string
	password   string
	version    string
	nextID     int
	sessions   map[string]bool
	handshakes int
}

// NewServer starts a mock database accepting the credentials admin/apple.
// The server shuts down when the test finishes.
func NewServer(t *testing.T) *Server {
	s := &Server{
		user:     "admin",
		password: "apple",
		version:  "11.8.01500.2",
		sessions: make(map[string]bool),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/v1/Configuration/ProductVersion", s.handleVersion)
	s.mux.HandleFunc("/api/v1/ActiveSession/tm1.Close", s.handleClose)

	s.httpServer = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.httpServer.Close)
	return s
}

// URL returns the server address, suitable for Config.Address.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Handle registers a handler for an entity resource, such as
// "/api/v1/Cubes('Sales')/tm1.Update". The handler runs only for requests
// carrying a live session.
func (s *Server) Handle(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Handshakes returns the number of sessions the server issued.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, alive := range s.sessions {
		if alive {
			n++
		}
	}
	return n
}

// ExpireAll invalidates every session the server issued. Requests carrying
// an expired cookie answer 401 until the client re-authenticates.
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.sessions {
		s.sessions[token] = false
	}
}

// SetVersion changes the product version reported on the handshake.
func (s *Server) SetVersion(version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	s.mux.ServeHTTP(w, r)
}

// authorize admits requests carrying a live session cookie. Requests
// carrying valid credentials instead are issued a fresh session, which is
// how the handshake and the reconnect present themselves.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ck, err := r.Cookie(sessionCookieName); err == nil && s.sessions[ck.Value] {
		return true
	}

	if user, pass, ok := r.BasicAuth(); ok && user == s.user && pass == s.password {
		s.handshakes++
		s.nextID++
		token := fmt.Sprintf("mock-%d", s.nextID)
		s.sessions[token] = true
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
		})
		return true
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprint(w, `{"error":{"code":"401","message":"authentication required"}}`)
	return false
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"value":%q}`, version)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if ck, err := r.Cookie(sessionCookieName); err == nil {
		delete(s.sessions, ck.Value)
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

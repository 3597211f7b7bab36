//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// Built-in administrative groups. Group names compare case-insensitively.
const (
	groupAdmin           = "ADMIN"
	groupDataAdmin       = "DataAdmin"
	groupSecurityAdmin   = "SecurityAdmin"
	groupOperationsAdmin = "OperationsAdmin"
)

// User describes a database user.
type User struct {
	// Name is the login name of the user.
	Name string `json:"Name"`

	// FriendlyName is the display name of the user.
	FriendlyName string `json:"FriendlyName"`

	// Type classifies the user, such as "User" or "Admin".
	Type string `json:"Type"`

	// IsActive reports whether the user currently holds a session.
	IsActive bool `json:"IsActive"`

	// Groups lists the security groups the user belongs to.
	Groups []Group `json:"Groups"`
}

// MemberOf reports whether the user belongs to the named group. Group names
// compare case-insensitively.
func (u *User) MemberOf(group string) bool {
	for _, g := range u.Groups {
		if strings.EqualFold(g.Name, group) {
			return true
		}
	}
	return false
}

// Group describes a security group.
type Group struct {
	// Name is the name of the group.
	Name string `json:"Name"`
}

// SecurityService reads the identity and group memberships of the session
// user.
type SecurityService struct {
	rest restExecutor

	// The session user is resolved once and cached for the life of the
	// session; the same credentials resolve to the same user across
	// reconnects.
	mu   sync.Mutex
	user *User
}

// CurrentUser returns the user the session runs as, with its group
// memberships expanded.
func (s *SecurityService) CurrentUser(ctx context.Context) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		return s.user, nil
	}

	req := &Request{
		Method: http.MethodGet,
		Path:   "/ActiveUser?$expand=Groups($select=Name)",
	}

	var user User
	if err := doJSON(ctx, s.rest, req, &user); err != nil {
		return nil, err
	}

	s.user = &user
	return s.user, nil
}

func (s *SecurityService) memberOf(ctx context.Context, group string) (bool, error) {
	return s.memberOfAny(ctx, group)
}

func (s *SecurityService) memberOfAny(ctx context.Context, groups ...string) (bool, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return false, err
	}

	for _, g := range groups {
		if user.MemberOf(g) {
			return true, nil
		}
	}
	return false, nil
}

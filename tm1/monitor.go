//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Thread states reported by the server.
const (
	ThreadStateIdle     = "Idle"
	ThreadStateRun      = "Run"
	ThreadStateWait     = "Wait"
	ThreadStateCommit   = "Commit"
	ThreadStateRollback = "Rollback"
)

// Thread types reported by the server.
const (
	ThreadTypeUser    = "User"
	ThreadTypeSystem  = "System"
	ThreadTypeContent = "Content"
)

// Thread describes one worker thread of the database.
type Thread struct {
	// ID identifies the thread.
	ID int64 `json:"ID"`

	// Name is the name of the user the thread works for.
	Name string `json:"Name"`

	// Type classifies the thread, such as "User" or "System".
	Type string `json:"Type"`

	// State is the execution state, such as "Run" or "Idle".
	State string `json:"State"`

	// Function describes the operation the thread executes.
	Function string `json:"Function"`

	// Context is the session context name of the owning session.
	Context string `json:"Context"`

	// ObjectType and ObjectName identify the object the thread holds its
	// strongest lock on, if any.
	ObjectType string `json:"ObjectType"`
	ObjectName string `json:"ObjectName"`

	// Lock counts held by the thread.
	RLocks  int `json:"RLocks"`
	IXLocks int `json:"IXLocks"`
	WLocks  int `json:"WLocks"`

	// ElapsedTime and WaitTime are ISO 8601 durations reported by the
	// server.
	ElapsedTime string `json:"ElapsedTime"`
	WaitTime    string `json:"WaitTime"`
}

// Session describes one database session.
type Session struct {
	// ID identifies the session.
	ID int64 `json:"ID"`

	// Context is the session context name the session was established with.
	Context string `json:"Context"`

	// Active reports whether a request is executing on the session.
	Active bool `json:"Active"`
}

// MonitoringService inspects and cancels database threads and sessions.
type MonitoringService struct {
	rest restExecutor
}

// Threads returns all worker threads of the database.
func (m *MonitoringService) Threads(ctx context.Context) ([]Thread, error) {
	return m.queryThreads(ctx, "/Threads")
}

// ActiveThreads returns the threads currently executing an operation,
// excluding the thread serving this call.
func (m *MonitoringService) ActiveThreads(ctx context.Context) ([]Thread, error) {
	threads, err := m.queryThreads(ctx, "/Threads?$filter="+queryEscape("State ne 'Idle'"))
	if err != nil {
		return nil, err
	}
	return excludeSelf(threads), nil
}

// CancelThread asks the server to stop the operation the specified thread
// executes. The thread itself survives and returns to the idle state.
func (m *MonitoringService) CancelThread(ctx context.Context, id int64) error {
	req := &Request{
		Method:          http.MethodPost,
		Path:            fmt.Sprintf("/Threads(%d)/tm1.CancelOperation", id),
		CancelAtTimeout: boolPtr(false),
	}
	_, err := m.rest.Do(ctx, req)
	return err
}

// CancelAllRunningThreads cancels the operations of every active thread.
// It returns the IDs of the threads it canceled.
func (m *MonitoringService) CancelAllRunningThreads(ctx context.Context) ([]int64, error) {
	threads, err := m.ActiveThreads(ctx)
	if err != nil {
		return nil, err
	}

	canceled := make([]int64, 0, len(threads))
	for _, t := range threads {
		if t.Type == ThreadTypeSystem {
			continue
		}
		if err = m.CancelThread(ctx, t.ID); err != nil {
			return canceled, err
		}
		canceled = append(canceled, t.ID)
	}
	return canceled, nil
}

// Sessions returns all sessions of the database.
func (m *MonitoringService) Sessions(ctx context.Context) ([]Session, error) {
	var result struct {
		Value []Session `json:"value"`
	}

	req := &Request{Method: http.MethodGet, Path: "/Sessions"}
	if err := doJSON(ctx, m.rest, req, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// ActiveSession returns the session serving this call.
func (m *MonitoringService) ActiveSession(ctx context.Context) (*Session, error) {
	var session Session

	req := &Request{Method: http.MethodGet, Path: "/ActiveSession"}
	if err := doJSON(ctx, m.rest, req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseSession terminates the specified session server-side.
func (m *MonitoringService) CloseSession(ctx context.Context, id int64) error {
	req := &Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/Sessions(%d)/tm1.Close", id),
	}
	_, err := m.rest.Do(ctx, req)
	return err
}

// sessionThreads returns the non-idle threads of the calling session,
// excluding the thread serving this call. The request execution layer uses
// it to identify the operation behind a timed out request.
func (m *MonitoringService) sessionThreads(ctx context.Context) ([]Thread, error) {
	threads, err := m.queryThreads(ctx,
		"/ActiveSession/Threads?$filter="+queryEscape("State ne 'Idle'"))
	if err != nil {
		return nil, err
	}
	return excludeSelf(threads), nil
}

func (m *MonitoringService) queryThreads(ctx context.Context, path string) ([]Thread, error) {
	var result struct {
		Value []Thread `json:"value"`
	}

	req := &Request{
		Method:          http.MethodGet,
		Path:            path,
		CancelAtTimeout: boolPtr(false),
	}
	if err := doJSON(ctx, m.rest, req, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// excludeSelf drops the thread executing the thread query itself from the
// result.
func excludeSelf(threads []Thread) []Thread {
	kept := threads[:0]
	for _, t := range threads {
		if strings.Contains(t.Function, "/Threads") && strings.HasPrefix(t.Function, http.MethodGet) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

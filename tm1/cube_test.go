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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// stubRest serves scripted responses to service requests and records what
// was asked. Like the client, it maps non-2xx answers to a RestError. An
// exhausted script answers 200 with an empty object.
type stubRest struct {
	reqs  []*Request
	queue []stubAnswer
}

type stubAnswer struct {
	code int
	body string
	err  error
}

func (s *stubRest) answer(code int, body string) *stubRest {
	s.queue = append(s.queue, stubAnswer{code: code, body: body})
	return s
}

func (s *stubRest) answerErr(err error) *stubRest {
	s.queue = append(s.queue, stubAnswer{err: err})
	return s
}

func (s *stubRest) Do(ctx context.Context, req *Request) (*httputil.Response, error) {
	s.reqs = append(s.reqs, req)

	a := stubAnswer{code: http.StatusOK, body: "{}"}
	if len(s.queue) > 0 {
		a = s.queue[0]
		s.queue = s.queue[1:]
	}

	if a.err != nil {
		return nil, a.err
	}
	if a.code < 200 || a.code > 299 {
		return nil, tm1err.NewRest(req.Method, req.Path, a.code, a.body, nil)
	}
	return &httputil.Response{Code: a.code, Body: []byte(a.body)}, nil
}

func (s *stubRest) lastPath() string {
	return s.reqs[len(s.reqs)-1].Path
}

// stubCells answers single-cell reads from a fixed map and records writes.
type stubCells struct {
	values map[string]interface{}
	writes []string
}

func cellKey(cube string, elements ...string) string {
	key := cube
	for _, e := range elements {
		key += "|" + e
	}
	return key
}

func (s *stubCells) GetValue(ctx context.Context, cube string, elements ...string) (interface{}, error) {
	return s.values[cellKey(cube, elements...)], nil
}

func (s *stubCells) WriteValue(ctx context.Context, cube string, value interface{}, elements ...string) error {
	s.writes = append(s.writes, fmt.Sprintf("%s=%v", cellKey(cube, elements...), value))
	return nil
}

func TestCubeGet(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusOK,
		`{"Name":"Sales","Rules":"SKIPCHECK;","Dimensions":[{"Name":"Region"},{"Name":"Measure"}]}`)
	svc := &CubeService{rest: rest}

	cube, err := svc.Get(context.Background(), "Sales")
	require.NoErrorf(t, err, "Get() got error %v", err)

	assert.Equal(t, "/Cubes('Sales')?$expand=Dimensions($select=Name)", rest.lastPath())
	assert.Equal(t, "Sales", cube.Name)
	assert.Equal(t, "SKIPCHECK;", cube.Rules)
	assert.Equal(t, []string{"Region", "Measure"}, cube.DimensionNames())
}

func TestCubeExists(t *testing.T) {
	rest := (&stubRest{}).
		answer(http.StatusOK, `{"Name":"Sales"}`).
		answer(http.StatusNotFound, "").
		answer(http.StatusInternalServerError, "")
	svc := &CubeService{rest: rest}
	ctx := context.Background()

	exists, err := svc.Exists(ctx, "Sales")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, "Ghost")
	require.NoErrorf(t, err, "a missing cube is not an error")
	assert.False(t, exists)

	_, err = svc.Exists(ctx, "Sales")
	assert.Errorf(t, err, "a server failure must surface")
}

func TestCubeDimensionNames(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusOK,
		`{"value":[{"Name":"Region"},{"Name":"Period"},{"Name":"Measure"}]}`)
	svc := &CubeService{rest: rest}

	names, err := svc.DimensionNames(context.Background(), "Sales")
	require.NoError(t, err)
	assert.Equal(t, "/Cubes('Sales')/Dimensions?$select=Name", rest.lastPath())
	assert.Equal(t, []string{"Region", "Period", "Measure"}, names)
}

func TestTransactionLogActive(t *testing.T) {
	cells := &stubCells{values: map[string]interface{}{
		cellKey("}CubeProperties", "Sales", "LOGGING"):   "YES",
		cellKey("}CubeProperties", "Archive", "LOGGING"): "no",
	}}
	svc := &CubeService{cells: cells}
	ctx := context.Background()

	active, err := svc.TransactionLogActive(ctx, "Sales")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = svc.TransactionLogActive(ctx, "Archive")
	require.NoError(t, err)
	assert.Falsef(t, active, "state compares case-insensitively")

	active, err = svc.TransactionLogActive(ctx, "Unknown")
	require.NoError(t, err)
	assert.Falsef(t, active, "an unset property counts as inactive")
}

func TestSetTransactionLog(t *testing.T) {
	cells := &stubCells{}
	svc := &CubeService{cells: cells}
	ctx := context.Background()

	require.NoError(t, svc.SetTransactionLog(ctx, "Sales", true))
	require.NoError(t, svc.SetTransactionLog(ctx, "Sales", false))

	assert.Equal(t, []string{
		"}CubeProperties|Sales|LOGGING=YES",
		"}CubeProperties|Sales|LOGGING=NO",
	}, cells.writes)
}

func TestSuppressTransactionLog(t *testing.T) {
	cells := &stubCells{values: map[string]interface{}{
		cellKey("}CubeProperties", "Sales", "LOGGING"): "YES",
	}}
	svc := &CubeService{cells: cells}
	ctx := context.Background()

	restore, err := svc.SuppressTransactionLog(ctx, "Sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"}CubeProperties|Sales|LOGGING=NO"}, cells.writes)

	require.NoError(t, restore(ctx))
	assert.Equal(t, []string{
		"}CubeProperties|Sales|LOGGING=NO",
		"}CubeProperties|Sales|LOGGING=YES",
	}, cells.writes)
}

func TestSuppressTransactionLogAlreadyOff(t *testing.T) {
	cells := &stubCells{values: map[string]interface{}{
		cellKey("}CubeProperties", "Sales", "LOGGING"): "NO",
	}}
	svc := &CubeService{cells: cells}
	ctx := context.Background()

	restore, err := svc.SuppressTransactionLog(ctx, "Sales")
	require.NoError(t, err)
	require.NoError(t, restore(ctx))
	assert.Emptyf(t, cells.writes, "an inactive log needs no switch and no restore")
}

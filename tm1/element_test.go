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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newElementService(rest restExecutor) *ElementService {
	svc := &ElementService{rest: rest}
	svc.initCache()
	return svc
}

func TestElementGet(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusOK,
		`{"Name":"Revenue","Type":"Numeric","Level":0,"Index":3}`)
	svc := newElementService(rest)

	el, err := svc.Get(context.Background(), "Measure", "Measure", "Revenue")
	require.NoErrorf(t, err, "Get() got error %v", err)

	assert.Equal(t, "/Dimensions('Measure')/Hierarchies('Measure')/Elements('Revenue')", rest.lastPath())
	assert.Equal(t, "Revenue", el.Name)
	assert.Equal(t, ElementTypeNumeric, el.Type)
	assert.Equal(t, 0, el.Level)
	assert.Equal(t, 3, el.Index)
}

func TestElementExists(t *testing.T) {
	rest := (&stubRest{}).
		answer(http.StatusOK, `{"Name":"Revenue"}`).
		answer(http.StatusNotFound, "")
	svc := newElementService(rest)
	ctx := context.Background()

	exists, err := svc.Exists(ctx, "Measure", "Measure", "Revenue")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, "Measure", "Measure", "Ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestElementTypeCached(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusOK, `{"Name":"Revenue","Type":"Numeric"}`)
	svc := newElementService(rest)
	ctx := context.Background()

	et, err := svc.ElementType(ctx, "Measure", "Measure", "Revenue")
	require.NoError(t, err)
	assert.Equal(t, ElementTypeNumeric, et)
	assert.Len(t, rest.reqs, 1)

	// The second probe is served from the cache, case differences included.
	et, err = svc.ElementType(ctx, "measure", "MEASURE", "revenue")
	require.NoError(t, err)
	assert.Equal(t, ElementTypeNumeric, et)
	assert.Lenf(t, rest.reqs, 1, "a repeated probe must not cross the wire")
}

func TestElementTypeMissDistinctElements(t *testing.T) {
	rest := (&stubRest{}).
		answer(http.StatusOK, `{"Name":"Revenue","Type":"Numeric"}`).
		answer(http.StatusOK, `{"Name":"Comment","Type":"String"}`)
	svc := newElementService(rest)
	ctx := context.Background()

	et, err := svc.ElementType(ctx, "Measure", "Measure", "Revenue")
	require.NoError(t, err)
	assert.Equal(t, ElementTypeNumeric, et)

	et, err = svc.ElementType(ctx, "Measure", "Measure", "Comment")
	require.NoError(t, err)
	assert.Equal(t, ElementTypeString, et)
	assert.Len(t, rest.reqs, 2)
}

func TestElementTypeFailurePassesThrough(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusNotFound, "")
	svc := newElementService(rest)

	_, err := svc.ElementType(context.Background(), "Measure", "Measure", "Ghost")
	require.Errorf(t, err, "a missing element must surface, not be cached")
	assert.Len(t, rest.reqs, 1)
}

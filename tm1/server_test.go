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

func TestServerConfigValues(t *testing.T) {
	tests := []struct {
		call     func(*ServerService, context.Context) (string, error)
		wantPath string
		body     string
		want     string
	}{
		{(*ServerService).ProductVersion, "/Configuration/ProductVersion",
			`{"value":"11.8.01500.2"}`, "11.8.01500.2"},
		{(*ServerService).Name, "/Configuration/ServerName",
			`{"value":"Planning Sample"}`, "Planning Sample"},
		{(*ServerService).DataDirectory, "/Configuration/DataBaseDirectory",
			`{"value":"/data/tm1"}`, "/data/tm1"},
	}

	for i, r := range tests {
		rest := (&stubRest{}).answer(http.StatusOK, r.body)
		svc := &ServerService{rest: rest}

		got, err := r.call(svc, context.Background())
		require.NoErrorf(t, err, "Test-%d: got error %v", i, err)
		assert.Equalf(t, r.wantPath, rest.lastPath(), "Test-%d: unexpected path", i)
		assert.Equalf(t, r.want, got, "Test-%d: unexpected value", i)
	}
}

func TestServerConfigValueMalformed(t *testing.T) {
	rest := (&stubRest{}).answer(http.StatusOK, `{"Value":"11.8"}`)
	svc := &ServerService{rest: rest}

	_, err := svc.ProductVersion(context.Background())
	require.Error(t, err)
}

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
)

// ServerService exposes database-wide information.
type ServerService struct {
	rest restExecutor
}

// ProductVersion asks the database for its product version. Unlike
// Client.ServerVersion it always crosses the wire.
func (s *ServerService) ProductVersion(ctx context.Context) (string, error) {
	return s.configValue(ctx, "/Configuration/ProductVersion")
}

// Name returns the configured name of the database.
func (s *ServerService) Name(ctx context.Context) (string, error) {
	return s.configValue(ctx, "/Configuration/ServerName")
}

// DataDirectory returns the data directory path of the database.
func (s *ServerService) DataDirectory(ctx context.Context) (string, error) {
	return s.configValue(ctx, "/Configuration/DataBaseDirectory")
}

func (s *ServerService) configValue(ctx context.Context, path string) (string, error) {
	req := &Request{Method: http.MethodGet, Path: path}
	resp, err := s.rest.Do(ctx, req)
	if err != nil {
		return "", err
	}

	var value string
	if err = unmarshalScalar(resp.Body, &value); err != nil {
		return "", err
	}
	return value, nil
}

//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// documentODataType marks a file entry in the entity model.
const documentODataType = "#ibm.tm1.api.v1.Document"

// FileService manages database-hosted file content.
//
// The resource layout moved twice across server generations: v12 hosts
// files under /Files, 11.4 and later under the Contents('Blobs') folder
// with raw content upload, and servers before 11.4 only accept content
// inline as base64. The service picks the dialect from the server version.
type FileService struct {
	rest    restExecutor
	version func(ctx context.Context) (string, error)
}

// Get returns the content of the named file.
func (s *FileService) Get(ctx context.Context, name string) ([]byte, error) {
	entry, _, err := s.entryPath(ctx, name)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodGet,
		Path:   entry + "/Content",
		Header: http.Header{"Accept": []string{"application/octet-stream"}},
	}

	resp, err := s.rest.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Exists reports whether the named file exists.
func (s *FileService) Exists(ctx context.Context, name string) (bool, error) {
	entry, _, err := s.entryPath(ctx, name)
	if err != nil {
		return false, err
	}

	req := &Request{
		Method: http.MethodGet,
		Path:   entry + "?$select=Name",
	}

	if _, err = s.rest.Do(ctx, req); err != nil {
		if tm1err.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put stores the content under the named file, creating the file if needed.
func (s *FileService) Put(ctx context.Context, name string, data []byte) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		return s.Update(ctx, name, data)
	}
	return s.Create(ctx, name, data)
}

// Create stores the content as a new file.
func (s *FileService) Create(ctx context.Context, name string, data []byte) error {
	entry, legacy, err := s.entryPath(ctx, name)
	if err != nil {
		return err
	}
	root := entry[:strings.LastIndex(entry, "(")]

	doc := map[string]interface{}{
		"@odata.type": documentODataType,
		"Name":        name,
	}
	if legacy {
		doc["Content"] = base64.StdEncoding.EncodeToString(data)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   root,
		Body:   body,
	}
	if _, err = s.rest.Do(ctx, req); err != nil {
		return err
	}

	if legacy {
		return nil
	}
	return s.putContent(ctx, entry, data)
}

// Update replaces the content of an existing file.
func (s *FileService) Update(ctx context.Context, name string, data []byte) error {
	entry, legacy, err := s.entryPath(ctx, name)
	if err != nil {
		return err
	}

	if legacy {
		body, err := json.Marshal(map[string]string{
			"Content": base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return err
		}

		req := &Request{
			Method: http.MethodPatch,
			Path:   entry,
			Body:   body,
		}
		_, err = s.rest.Do(ctx, req)
		return err
	}

	return s.putContent(ctx, entry, data)
}

// Delete removes the named file.
func (s *FileService) Delete(ctx context.Context, name string) error {
	entry, _, err := s.entryPath(ctx, name)
	if err != nil {
		return err
	}

	req := &Request{
		Method: http.MethodDelete,
		Path:   entry,
	}
	_, err = s.rest.Do(ctx, req)
	return err
}

func (s *FileService) putContent(ctx context.Context, entry string, data []byte) error {
	req := &Request{
		Method:      http.MethodPut,
		Path:        entry + "/Content",
		Body:        data,
		ContentType: "application/octet-stream",
	}
	_, err := s.rest.Do(ctx, req)
	return err
}

// entryPath resolves the resource path of the named file and whether the
// legacy inline-content dialect applies.
func (s *FileService) entryPath(ctx context.Context, name string) (path string, legacy bool, err error) {
	version, err := s.version(ctx)
	if err != nil {
		return "", false, err
	}

	switch {
	case versionAtLeast(version, 12, 0):
		return formatURL("/Files('%s')", name), false, nil
	case versionAtLeast(version, 11, 4):
		return formatURL("/Contents('Blobs')/Contents('%s')", name), false, nil
	default:
		return formatURL("/Contents('Blobs')/Contents('%s')", name), true, nil
	}
}

// versionAtLeast compares a dotted product version against a major.minor
// floor. An unparsable or empty version counts as a current 11.x server,
// which holds for attached sessions that never observed a handshake.
func versionAtLeast(version string, major, minor int) bool {
	if version == "" {
		return major < 12
	}

	parts := strings.SplitN(version, ".", 3)
	vMajor, err := strconv.Atoi(parts[0])
	if err != nil {
		return major < 12
	}

	vMinor := 0
	if len(parts) > 1 {
		if vMinor, err = strconv.Atoi(parts[1]); err != nil {
			vMinor = 0
		}
	}

	if vMajor != major {
		return vMajor > major
	}
	return vMinor >= minor
}

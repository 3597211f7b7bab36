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
	"time"

	"github.com/bluele/gcache"

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// Element type cache sizing. Bulk writes probe the measure element of every
// distinct coordinate, so repeated lookups must not cross the wire.
const (
	elementTypeCacheSize = 4096
	elementTypeCacheTTL  = 10 * time.Minute
)

// ElementType classifies a hierarchy element.
type ElementType string

// Element types reported by the server.
const (
	ElementTypeNumeric      ElementType = "Numeric"
	ElementTypeString       ElementType = "String"
	ElementTypeConsolidated ElementType = "Consolidated"
)

// Element describes one element of a dimension hierarchy.
type Element struct {
	// Name is the name of the element.
	Name string `json:"Name"`

	// Type classifies the element.
	Type ElementType `json:"Type"`

	// Level is the hierarchy level, 0 for leaves.
	Level int `json:"Level"`

	// Index is the position of the element within its dimension.
	Index int `json:"Index"`
}

// ElementService accesses dimension hierarchy elements.
type ElementService struct {
	rest restExecutor

	// types caches element type probes.
	types gcache.Cache
}

// initCache builds the element type cache. The composition root calls it
// once.
func (s *ElementService) initCache() {
	s.types = gcache.New(elementTypeCacheSize).LRU().Build()
}

// Get returns the element of the specified dimension hierarchy.
func (s *ElementService) Get(ctx context.Context, dimension, hierarchy, element string) (*Element, error) {
	req := &Request{
		Method: http.MethodGet,
		Path: formatURL("/Dimensions('%s')/Hierarchies('%s')/Elements('%s')",
			dimension, hierarchy, element),
	}

	var el Element
	if err := doJSON(ctx, s.rest, req, &el); err != nil {
		return nil, err
	}
	return &el, nil
}

// Exists reports whether the element exists in the specified dimension
// hierarchy.
func (s *ElementService) Exists(ctx context.Context, dimension, hierarchy, element string) (bool, error) {
	req := &Request{
		Method: http.MethodGet,
		Path: formatURL("/Dimensions('%s')/Hierarchies('%s')/Elements('%s')?$select=Name",
			dimension, hierarchy, element),
	}

	_, err := s.rest.Do(ctx, req)
	if err != nil {
		if tm1err.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ElementType returns the type of the element, answering repeated probes
// from an expiring cache. Concurrent misses for the same element may each
// cross the wire; the result is identical so the duplication is harmless.
func (s *ElementService) ElementType(ctx context.Context, dimension, hierarchy, element string) (ElementType, error) {
	key := strings.ToLower(dimension + "|" + hierarchy + "|" + element)

	if v, err := s.types.GetIFPresent(key); err == nil {
		return v.(ElementType), nil
	}

	el, err := s.Get(ctx, dimension, hierarchy, element)
	if err != nil {
		return "", err
	}

	_ = s.types.SetWithExpire(key, el.Type, elementTypeCacheTTL)
	return el.Type, nil
}

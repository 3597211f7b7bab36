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

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// cubePropertiesCube is the control cube holding per-cube settings. Its
// dimensions are }Cubes and }CubeProperties.
const cubePropertiesCube = "}CubeProperties"

// Cube describes a cube and its dimension order.
type Cube struct {
	// Name is the name of the cube.
	Name string `json:"Name"`

	// Rules is the rule text attached to the cube, if any.
	Rules string `json:"Rules"`

	// Dimensions lists the dimensions of the cube in cube order.
	Dimensions []Dimension `json:"Dimensions"`
}

// DimensionNames returns the dimension names of the cube in cube order.
func (c *Cube) DimensionNames() []string {
	names := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		names[i] = d.Name
	}
	return names
}

// Dimension describes a dimension.
type Dimension struct {
	// Name is the name of the dimension.
	Name string `json:"Name"`
}

// cellAccessor is the single-cell read/write capability CubeService uses to
// reach the control cube behind the transaction log switch.
type cellAccessor interface {
	GetValue(ctx context.Context, cube string, elements ...string) (interface{}, error)
	WriteValue(ctx context.Context, cube string, value interface{}, elements ...string) error
}

// CubeService accesses cube metadata and the cube transaction log switch.
type CubeService struct {
	rest  restExecutor
	cells cellAccessor
}

// Get returns the cube with its dimensions expanded.
func (s *CubeService) Get(ctx context.Context, name string) (*Cube, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/Cubes('%s')?$expand=Dimensions($select=Name)", name),
	}

	var cube Cube
	if err := doJSON(ctx, s.rest, req, &cube); err != nil {
		return nil, err
	}
	return &cube, nil
}

// Exists reports whether a cube with the specified name exists.
func (s *CubeService) Exists(ctx context.Context, name string) (bool, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/Cubes('%s')?$select=Name", name),
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

// DimensionNames returns the dimension names of the cube in cube order.
func (s *CubeService) DimensionNames(ctx context.Context, cube string) ([]string, error) {
	var result struct {
		Value []Dimension `json:"value"`
	}

	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/Cubes('%s')/Dimensions?$select=Name", cube),
	}
	if err := doJSON(ctx, s.rest, req, &result); err != nil {
		return nil, err
	}

	names := make([]string, len(result.Value))
	for i, d := range result.Value {
		names[i] = d.Name
	}
	return names, nil
}

// TransactionLogActive reports whether writes to the cube are recorded in
// the transaction log.
func (s *CubeService) TransactionLogActive(ctx context.Context, cube string) (bool, error) {
	v, err := s.cells.GetValue(ctx, cubePropertiesCube, cube, "LOGGING")
	if err != nil {
		return false, err
	}

	state, _ := v.(string)
	return strings.EqualFold(state, "YES"), nil
}

// SetTransactionLog switches transaction logging for the cube on or off.
func (s *CubeService) SetTransactionLog(ctx context.Context, cube string, active bool) error {
	state := "NO"
	if active {
		state = "YES"
	}
	return s.cells.WriteValue(ctx, cubePropertiesCube, state, cube, "LOGGING")
}

// SuppressTransactionLog switches transaction logging for the cube off and
// returns a function restoring the prior state. The restore function must
// run on every exit path of the caller:
//
//	restore, err := cubes.SuppressTransactionLog(ctx, cube)
//	if err != nil {
//		return err
//	}
//	defer restore(ctx)
//
// If logging is already off, the restore function does nothing.
func (s *CubeService) SuppressTransactionLog(ctx context.Context, cube string) (func(context.Context) error, error) {
	active, err := s.TransactionLogActive(ctx, cube)
	if err != nil {
		return nil, err
	}

	if !active {
		return func(context.Context) error { return nil }, nil
	}

	if err = s.SetTransactionLog(ctx, cube, false); err != nil {
		return nil, err
	}

	return func(restoreCtx context.Context) error {
		return s.SetTransactionLog(restoreCtx, cube, true)
	}, nil
}

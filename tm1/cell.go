//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// Cell is one cube cell addressed by its coordinates.
type Cell struct {
	// Coordinates names one element per cube dimension, in cube order.
	// An element may be qualified with its hierarchy as
	// "Hierarchy::Element"; unqualified elements address the hierarchy
	// with the same name as the dimension.
	Coordinates []string

	// Value is the cell content, numeric or string.
	Value interface{}
}

// Cellset is the materialized result of an MDX execution. The server keeps
// it alive until it is deleted or the session ends.
type Cellset struct {
	// ID identifies the cellset for follow-up reads and for deletion.
	ID string `json:"ID"`

	// Cells holds the expanded cell values in ordinal order.
	Cells []CellsetCell `json:"Cells"`
}

// CellsetCell is one cell of a materialized cellset.
type CellsetCell struct {
	Ordinal int         `json:"Ordinal"`
	Value   interface{} `json:"Value"`
}

// Capabilities the cell write pipeline consumes. The composition root wires
// the concrete services in.
type (
	// cubeMeta resolves cube dimension order and guards the cube
	// transaction log.
	cubeMeta interface {
		DimensionNames(ctx context.Context, cube string) ([]string, error)
		SuppressTransactionLog(ctx context.Context, cube string) (func(context.Context) error, error)
	}

	// elementTyper probes element types, deciding string versus numeric
	// puts.
	elementTyper interface {
		ElementType(ctx context.Context, dimension, hierarchy, element string) (ElementType, error)
	}

	// processRunner executes unbound TurboIntegrator processes.
	processRunner interface {
		ExecuteProcessWithReturn(ctx context.Context, process *Process) (*ProcessExecuteResult, error)
	}

	// blobStore stores and removes database-hosted files.
	blobStore interface {
		Put(ctx context.Context, name string, data []byte) error
		Delete(ctx context.Context, name string) error
	}
)

// CellService reads and writes cube cells.
type CellService struct {
	rest      restExecutor
	cfg       *Config
	logger    *logger.Logger
	metrics   MetricsCollector
	cubes     cubeMeta
	elements  elementTyper
	processes processRunner
	files     blobStore
}

// ExecuteMDX materializes the result of an MDX statement with its cell
// values expanded. The caller owns the returned cellset and should delete
// it through DeleteCellset when done.
func (s *CellService) ExecuteMDX(ctx context.Context, mdx string) (*Cellset, error) {
	body, err := json.Marshal(map[string]string{"MDX": mdx})
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   "/ExecuteMDX?$expand=Cells($select=Ordinal,Value)",
		Body:   body,
	}

	var cs Cellset
	if err = doJSON(ctx, s.rest, req, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// DeleteCellset releases a materialized cellset server-side.
func (s *CellService) DeleteCellset(ctx context.Context, id string) error {
	req := &Request{
		Method: http.MethodDelete,
		Path:   formatURL("/Cellsets('%s')", id),
	}
	_, err := s.rest.Do(ctx, req)
	return err
}

// GetValue reads a single cell value, one coordinate per cube dimension.
func (s *CellService) GetValue(ctx context.Context, cube string, elements ...string) (interface{}, error) {
	dims, err := s.cubes.DimensionNames(ctx, cube)
	if err != nil {
		return nil, err
	}
	if len(elements) != len(dims) {
		return nil, tm1err.NewConfiguration("cube %s has %d dimensions, got %d coordinates",
			cube, len(dims), len(elements))
	}

	cs, err := s.ExecuteMDX(ctx, tupleMDX(cube, dims, elements))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.DeleteCellset(ctx, cs.ID); err != nil {
			s.logger.Debug("cannot delete cellset %s: %v", cs.ID, err)
		}
	}()

	if len(cs.Cells) == 0 {
		return nil, fmt.Errorf("cell (%s) of cube %s resolved to an empty cellset",
			strings.Join(elements, ", "), cube)
	}
	return cs.Cells[0].Value, nil
}

// WriteValue writes a single cell value, one coordinate per cube dimension.
func (s *CellService) WriteValue(ctx context.Context, cube string, value interface{}, elements ...string) error {
	dims, err := s.cubes.DimensionNames(ctx, cube)
	if err != nil {
		return err
	}
	if len(elements) != len(dims) {
		return tm1err.NewConfiguration("cube %s has %d dimensions, got %d coordinates",
			cube, len(dims), len(elements))
	}

	body, err := json.Marshal(newCellUpdate(dims, Cell{Coordinates: elements, Value: value}))
	if err != nil {
		return err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   formatURL("/Cubes('%s')/tm1.Update", cube),
		Body:   body,
	}
	_, err = s.rest.Do(ctx, req)
	return err
}

// cellUpdate is the tm1.Update action payload for one cell.
type cellUpdate struct {
	Cells []tupleBind `json:"Cells"`
	Value interface{} `json:"Value"`
}

type tupleBind struct {
	Tuple []string `json:"Tuple@odata.bind"`
}

func newCellUpdate(dims []string, cell Cell) cellUpdate {
	binds := make([]string, len(dims))
	for i, d := range dims {
		h, e := splitHierarchy(d, cell.Coordinates[i])
		binds[i] = formatURL("Dimensions('%s')/Hierarchies('%s')/Elements('%s')", d, h, e)
	}
	return cellUpdate{
		Cells: []tupleBind{{Tuple: binds}},
		Value: cell.Value,
	}
}

// splitHierarchy resolves a possibly hierarchy-qualified coordinate.
func splitHierarchy(dimension, coordinate string) (hierarchy, element string) {
	if i := strings.Index(coordinate, "::"); i >= 0 {
		return coordinate[:i], coordinate[i+2:]
	}
	return dimension, coordinate
}

// tupleMDX builds a single-tuple MDX statement addressing one cell.
func tupleMDX(cube string, dims, coords []string) string {
	members := make([]string, len(dims))
	for i := range dims {
		members[i] = mdxMember(dims[i], coords[i])
	}
	return fmt.Sprintf("SELECT {(%s)} ON 0 FROM [%s]",
		strings.Join(members, ","), escapeMDX(cube))
}

func mdxMember(dimension, coordinate string) string {
	h, e := splitHierarchy(dimension, coordinate)
	return fmt.Sprintf("[%s].[%s].[%s]", escapeMDX(dimension), escapeMDX(h), escapeMDX(e))
}

// escapeMDX doubles closing brackets per the MDX identifier quoting rules.
func escapeMDX(name string) string {
	return strings.ReplaceAll(name, "]", "]]")
}

//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// WriteStrategy selects the mechanism a bulk write uses.
type WriteStrategy string

const (
	// WriteStrategyUpdate posts cube update actions directly. It is the
	// default and the only strategy honoring hierarchy-qualified
	// coordinates.
	WriteStrategyUpdate WriteStrategy = "update"

	// WriteStrategyProcess generates an unbound TurboIntegrator process
	// with one cell put statement per cell and executes it.
	WriteStrategyProcess WriteStrategy = "process"

	// WriteStrategyBlob uploads the cells as a CSV file and executes a
	// generated loader process reading it. It moves the least bytes per
	// cell and suits the largest writes.
	WriteStrategyBlob WriteStrategy = "blob"
)

// Bulk write sizing defaults.
const (
	defaultMaxPerGroup             = 250000
	defaultMaxStatementsPerProcess = 10000
)

// WriteOptions tunes a bulk cell write. The zero value selects the update
// strategy, one group per 250000 cells and sequential dispatch.
type WriteOptions struct {
	// Strategy selects the write mechanism.
	Strategy WriteStrategy

	// MaxPerGroup caps the cells per group. Cells are split into
	// ceil(len(cells)/MaxPerGroup) consecutive groups.
	MaxPerGroup int

	// MaxWorkers caps the groups in flight at once.
	MaxWorkers int

	// MaxStatementsPerProcess caps the statements per generated process
	// execution, for the process strategy.
	MaxStatementsPerProcess int

	// Precision fixes the decimal places of numeric literals in generated
	// scripts and CSV payloads. Zero formats the shortest exact form.
	Precision int

	// SuppressTransactionLog switches the cube transaction log off for
	// the duration of the write and restores the prior state afterwards.
	SuppressTransactionLog bool

	// RetainBlob keeps the uploaded CSV file after a blob strategy write,
	// for diagnosis.
	RetainBlob bool
}

// withDefaults resolves unset options without mutating the caller's value.
func (o *WriteOptions) withDefaults() *WriteOptions {
	var opts WriteOptions
	if o != nil {
		opts = *o
	}

	if opts.Strategy == "" {
		opts.Strategy = WriteStrategyUpdate
	}
	if opts.MaxPerGroup <= 0 {
		opts.MaxPerGroup = defaultMaxPerGroup
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.MaxStatementsPerProcess <= 0 {
		opts.MaxStatementsPerProcess = defaultMaxStatementsPerProcess
	}
	return &opts
}

// writeJob carries the per-write invariants into the strategies.
type writeJob struct {
	cube string
	dims []string
	opts *WriteOptions
}

// groupResult is the outcome one strategy reports for one group.
type groupResult struct {
	Success      bool
	Status       string
	ErrorLogFile string
}

// writeStrategy writes one group of cells.
type writeStrategy interface {
	name() WriteStrategy
	writeGroup(ctx context.Context, job *writeJob, cells []Cell) (*groupResult, error)
}

// strategyFor constructs the strategy the options select, wired with the
// capabilities it needs.
func (s *CellService) strategyFor(opts *WriteOptions) (writeStrategy, error) {
	switch opts.Strategy {
	case WriteStrategyUpdate:
		return updateStrategy{rest: s.rest}, nil
	case WriteStrategyProcess:
		return processStrategy{processes: s.processes, elements: s.elements}, nil
	case WriteStrategyBlob:
		return blobStrategy{processes: s.processes, files: s.files, logger: s.logger}, nil
	default:
		return nil, tm1err.NewConfiguration("unknown write strategy %q", opts.Strategy)
	}
}

// updateStrategy posts one tm1.Update action with the whole group.
type updateStrategy struct {
	rest restExecutor
}

func (updateStrategy) name() WriteStrategy { return WriteStrategyUpdate }

func (u updateStrategy) writeGroup(ctx context.Context, job *writeJob, cells []Cell) (*groupResult, error) {
	updates := make([]cellUpdate, len(cells))
	for i, c := range cells {
		updates[i] = newCellUpdate(job.dims, c)
	}

	body, err := json.Marshal(updates)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   formatURL("/Cubes('%s')/tm1.Update", job.cube),
		Body:   body,
	}
	if _, err = u.rest.Do(ctx, req); err != nil {
		return nil, err
	}

	return &groupResult{Success: true, Status: ProcessCompletedSuccessfully}, nil
}

// processStrategy generates unbound processes whose prolog puts the cells.
type processStrategy struct {
	processes processRunner
	elements  elementTyper
}

func (processStrategy) name() WriteStrategy { return WriteStrategyProcess }

func (p processStrategy) writeGroup(ctx context.Context, job *writeJob, cells []Cell) (*groupResult, error) {
	limit := job.opts.MaxStatementsPerProcess

	for start := 0; start < len(cells); start += limit {
		end := start + limit
		if end > len(cells) {
			end = len(cells)
		}

		proc, err := p.buildProcess(ctx, job, cells[start:end])
		if err != nil {
			return nil, err
		}

		result, err := p.processes.ExecuteProcessWithReturn(ctx, proc)
		if err != nil {
			return nil, err
		}
		if !result.Success() {
			return &groupResult{
				Status:       result.Status,
				ErrorLogFile: result.ErrorLogFile,
			}, nil
		}
	}

	return &groupResult{Success: true, Status: ProcessCompletedSuccessfully}, nil
}

func (p processStrategy) buildProcess(ctx context.Context, job *writeJob, cells []Cell) (*Process, error) {
	var prolog strings.Builder
	for _, cell := range cells {
		stmt, err := p.putStatement(ctx, job, cell)
		if err != nil {
			return nil, err
		}
		prolog.WriteString(stmt)
		prolog.WriteString("\r\n")
	}

	return &Process{
		Name:            writeArtifactName(""),
		PrologProcedure: prolog.String(),
		DataSource:      &ProcessDataSource{Type: "None"},
	}, nil
}

// putStatement renders one cell as a CellPutS or CellPutN call, decided by
// the type of the measure element the cell addresses.
func (p processStrategy) putStatement(ctx context.Context, job *writeJob, cell Cell) (string, error) {
	last := len(job.dims) - 1
	hier, elem := splitHierarchy(job.dims[last], cell.Coordinates[last])
	elemType, err := p.elements.ElementType(ctx, job.dims[last], hier, elem)
	if err != nil {
		return "", err
	}

	args := make([]string, 0, len(cell.Coordinates)+1)
	args = append(args, tiQuote(job.cube))
	for _, coord := range cell.Coordinates {
		args = append(args, tiQuote(coord))
	}

	if elemType == ElementTypeString {
		return fmt.Sprintf("CellPutS(%s, %s);",
			tiQuote(fmt.Sprintf("%v", cell.Value)), strings.Join(args, ", ")), nil
	}

	n, ok := numericValue(cell.Value)
	if !ok {
		return "", tm1err.NewConfiguration("cell (%s) addresses a numeric element with non-numeric value %v",
			strings.Join(cell.Coordinates, ", "), cell.Value)
	}
	return fmt.Sprintf("CellPutN(%s, %s);",
		formatNumber(n, job.opts.Precision), strings.Join(args, ", ")), nil
}

// blobStrategy uploads the group as CSV and loads it with a generated
// process.
type blobStrategy struct {
	processes processRunner
	files     blobStore
	logger    *logger.Logger
}

func (blobStrategy) name() WriteStrategy { return WriteStrategyBlob }

func (b blobStrategy) writeGroup(ctx context.Context, job *writeJob, cells []Cell) (*groupResult, error) {
	data, err := blobCSV(cells, job.opts.Precision)
	if err != nil {
		return nil, err
	}

	name := writeArtifactName(".csv")
	if err = b.files.Put(ctx, name, data); err != nil {
		return nil, err
	}
	if !job.opts.RetainBlob {
		defer func() {
			if err := b.files.Delete(ctx, name); err != nil {
				b.logger.Warn("cannot delete write blob %s: %v", name, err)
			}
		}()
	}

	result, err := b.processes.ExecuteProcessWithReturn(ctx, loaderProcess(job, name))
	if err != nil {
		return nil, err
	}
	return &groupResult{
		Success:      result.Success(),
		Status:       result.Status,
		ErrorLogFile: result.ErrorLogFile,
	}, nil
}

// blobCSV renders the cells as type-tagged CSV records:
//
//	N,coordinate...,value
//	S,coordinate...,value
func blobCSV(cells []Cell, precision int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	for i, cell := range cells {
		row := make([]string, 0, len(cell.Coordinates)+2)

		if n, ok := numericValue(cell.Value); ok {
			row = append(row, "N")
			row = append(row, cell.Coordinates...)
			row = append(row, formatNumber(n, precision))
		} else {
			row = append(row, "S")
			row = append(row, cell.Coordinates...)
			row = append(row, fmt.Sprintf("%v", cell.Value))
		}

		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("rendering cell %d: %w", i, err)
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// loaderProcess builds the process reading a type-tagged CSV blob back into
// the cube.
func loaderProcess(job *writeJob, blobName string) *Process {
	vars := make([]ProcessVariable, 0, len(job.dims)+2)
	vars = append(vars, ProcessVariable{Name: "vType", Type: "String", Position: 1})

	coords := make([]string, len(job.dims))
	for i := range job.dims {
		name := fmt.Sprintf("vCoord%d", i+1)
		coords[i] = name
		vars = append(vars, ProcessVariable{Name: name, Type: "String", Position: i + 2})
	}
	vars = append(vars, ProcessVariable{Name: "vValue", Type: "String", Position: len(job.dims) + 2})

	coordArgs := strings.Join(coords, ", ")
	var data strings.Builder
	data.WriteString("IF(vType @= 'S');\r\n")
	fmt.Fprintf(&data, "  CellPutS(vValue, %s, %s);\r\n", tiQuote(job.cube), coordArgs)
	data.WriteString("ELSE;\r\n")
	fmt.Fprintf(&data, "  CellPutN(StringToNumber(vValue), %s, %s);\r\n", tiQuote(job.cube), coordArgs)
	data.WriteString("ENDIF;\r\n")

	return &Process{
		Name:          writeArtifactName(""),
		DataProcedure: data.String(),
		DataSource: &ProcessDataSource{
			Type:                    "ASCII",
			DataSourceNameForClient: blobName,
			DataSourceNameForServer: blobName,
			ASCIIDecimalSeparator:   ".",
			ASCIIDelimiterChar:      ",",
			ASCIIDelimiterType:      "Character",
			ASCIIQuoteCharacter:     `"`,
		},
		Variables: vars,
	}
}

// writeArtifactName names a transient process or blob a write creates.
func writeArtifactName(suffix string) string {
	return "tm1-go-sdk.write." + uuid.NewString()[:8] + suffix
}

// tiQuote renders a TurboIntegrator string literal.
func tiQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatNumber renders a numeric literal, with a fixed number of decimals
// when precision is positive.
func formatNumber(v float64, precision int) string {
	if precision > 0 {
		return strconv.FormatFloat(v, 'f', precision, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// numericValue coerces the numeric types a cell value may arrive as.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

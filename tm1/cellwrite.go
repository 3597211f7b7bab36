//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// WriteResult summarizes a fully successful bulk write.
type WriteResult struct {
	// Strategy is the write mechanism used.
	Strategy WriteStrategy

	// Cells is the number of cells written.
	Cells int

	// Groups is the number of groups the cells were split into.
	Groups int

	// Elapsed is the wall time of the whole write.
	Elapsed time.Duration
}

// groupOutcome records how one group ended. Every group gets exactly one
// outcome regardless of completion order.
type groupOutcome struct {
	ok      bool
	status  string
	logFile string
}

// Write stores the cells into the cube, splitting them into groups of at
// most MaxPerGroup cells and dispatching up to MaxWorkers groups at once.
//
// Every group is attempted regardless of how its siblings fare. When all
// groups succeed, Write returns a WriteResult and a nil error. When none
// succeeds it returns a tm1err.WriteFailureError, and when some do a
// tm1err.WritePartialFailureError; both carry the group statuses, the
// server-side error log references and the number of groups attempted, so
// callers can distinguish "nothing written" from "partially written" and
// drive retries or rollbacks.
func (s *CellService) Write(ctx context.Context, cube string, cells []Cell, opts *WriteOptions) (*WriteResult, error) {
	if cube == "" {
		return nil, tm1err.NewConfiguration("cube name required")
	}
	if len(cells) == 0 {
		return nil, tm1err.NewConfiguration("no cells to write")
	}

	o := opts.withDefaults()
	strategy, err := s.strategyFor(o)
	if err != nil {
		return nil, err
	}

	dims, err := s.cubes.DimensionNames(ctx, cube)
	if err != nil {
		return nil, err
	}
	for i, c := range cells {
		if len(c.Coordinates) != len(dims) {
			return nil, tm1err.NewConfiguration("cell %d addresses %d of the %d dimensions of cube %s",
				i, len(c.Coordinates), len(dims), cube)
		}
	}

	if o.SuppressTransactionLog {
		restore, err := s.cubes.SuppressTransactionLog(ctx, cube)
		if err != nil {
			return nil, err
		}
		defer func() {
			// Restore must run even when the caller's context is gone.
			restoreCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DefaultHandshakeTimeout())
			defer cancel()
			if err := restore(restoreCtx); err != nil {
				s.logger.Warn("cannot restore the transaction log of cube %s: %v", cube, err)
			}
		}()
	}

	groups := chunkCells(cells, o.MaxPerGroup)
	job := &writeJob{cube: cube, dims: dims, opts: o}
	outcomes := make([]groupOutcome, len(groups))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.MaxWorkers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			groupStart := time.Now()
			outcomes[i] = s.writeGroup(gctx, strategy, job, group)
			s.metrics.WriteGroupCompleted(string(o.Strategy), len(group), outcomes[i].ok, time.Since(groupStart))
			return nil
		})
	}
	// Group functions never return an error; outcomes carry the failures.
	_ = g.Wait()

	return s.aggregate(o, cells, groups, outcomes, time.Since(start))
}

// writeGroup runs one group through the strategy and records its outcome.
func (s *CellService) writeGroup(ctx context.Context, strategy writeStrategy, job *writeJob, group []Cell) groupOutcome {
	result, err := strategy.writeGroup(ctx, job, group)
	if err != nil {
		s.logger.Debug("write group failed: %v", err)
		return groupOutcome{status: err.Error()}
	}

	return groupOutcome{
		ok:      result.Success,
		status:  result.Status,
		logFile: result.ErrorLogFile,
	}
}

// aggregate folds the group outcomes into the terminal result of the write.
func (s *CellService) aggregate(o *WriteOptions, cells []Cell, groups [][]Cell,
	outcomes []groupOutcome, elapsed time.Duration) (*WriteResult, error) {

	successes := 0
	statuses := make([]string, 0, len(outcomes))
	logFiles := make([]string, 0, len(outcomes))
	for _, out := range outcomes {
		if out.ok {
			successes++
			continue
		}
		statuses = append(statuses, out.status)
		if out.logFile != "" {
			logFiles = append(logFiles, out.logFile)
		}
	}

	attempts := len(groups)
	switch {
	case successes == attempts:
		return &WriteResult{
			Strategy: o.Strategy,
			Cells:    len(cells),
			Groups:   attempts,
			Elapsed:  elapsed,
		}, nil
	case successes == 0:
		return nil, tm1err.NewWriteFailure(statuses, logFiles, attempts)
	default:
		return nil, tm1err.NewWritePartialFailure(statuses, logFiles, attempts)
	}
}

// chunkCells splits the cells into ceil(len(cells)/maxPerGroup) consecutive
// groups.
func chunkCells(cells []Cell, maxPerGroup int) [][]Cell {
	groups := make([][]Cell, 0, (len(cells)+maxPerGroup-1)/maxPerGroup)
	for start := 0; start < len(cells); start += maxPerGroup {
		end := start + maxPerGroup
		if end > len(cells) {
			end = len(cells)
		}
		groups = append(groups, cells[start:end])
	}
	return groups
}

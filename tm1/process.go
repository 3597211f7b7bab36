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
	"net/http"

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// Process execution statuses reported by the server.
const (
	ProcessCompletedSuccessfully = "CompletedSuccessfully"
	ProcessCompletedWithMessages = "CompletedWithMessages"
	ProcessAborted               = "Aborted"
	ProcessHasMinorErrors        = "HasMinorErrors"
	ProcessQuitCalled            = "QuitCalled"
	ProcessRollbackOccurred      = "RollbackOccurred"
)

// Process describes a TurboIntegrator process. A Process value passed to
// ExecuteProcessWithReturn runs without being stored in the database.
type Process struct {
	// Name is the name of the process.
	Name string `json:"Name"`

	// The four procedure scripts of the process.
	PrologProcedure   string `json:"PrologProcedure,omitempty"`
	MetadataProcedure string `json:"MetadataProcedure,omitempty"`
	DataProcedure     string `json:"DataProcedure,omitempty"`
	EpilogProcedure   string `json:"EpilogProcedure,omitempty"`

	// DataSource feeds the metadata and data procedures.
	DataSource *ProcessDataSource `json:"DataSource,omitempty"`

	// Parameters declares the parameters of the process.
	Parameters []ProcessParameter `json:"Parameters,omitempty"`

	// Variables declares one variable per data source column.
	Variables []ProcessVariable `json:"Variables,omitempty"`
}

// ProcessDataSource describes where a process reads its records from. The
// field names follow the server's entity model.
type ProcessDataSource struct {
	// Type is "None", "ASCII", "TM1CubeView" or another server-known kind.
	Type string `json:"Type"`

	DataSourceNameForClient string `json:"dataSourceNameForClient,omitempty"`
	DataSourceNameForServer string `json:"dataSourceNameForServer,omitempty"`

	// ASCII datasource shape.
	ASCIIDecimalSeparator  string `json:"asciiDecimalSeparator,omitempty"`
	ASCIIDelimiterChar     string `json:"asciiDelimiterChar,omitempty"`
	ASCIIDelimiterType     string `json:"asciiDelimiterType,omitempty"`
	ASCIIHeaderRecords     int    `json:"asciiHeaderRecords,omitempty"`
	ASCIIQuoteCharacter    string `json:"asciiQuoteCharacter,omitempty"`
	ASCIIThousandSeparator string `json:"asciiThousandSeparator,omitempty"`
}

// ProcessParameter declares one process parameter.
type ProcessParameter struct {
	Name   string      `json:"Name"`
	Prompt string      `json:"Prompt,omitempty"`
	Value  interface{} `json:"Value,omitempty"`
	Type   string      `json:"Type,omitempty"`
}

// ProcessVariable declares one data source column variable.
type ProcessVariable struct {
	Name string `json:"Name"`

	// Type is "String" or "Numeric".
	Type string `json:"Type"`

	// Position is the 1-based column position.
	Position int `json:"Position"`

	// StartByte and EndByte are 0 for delimited sources.
	StartByte int `json:"StartByte"`
	EndByte   int `json:"EndByte"`
}

// ProcessExecuteResult is the outcome of one process execution.
type ProcessExecuteResult struct {
	// Status is the execution status reported by the server, such as
	// "CompletedSuccessfully" or "HasMinorErrors".
	Status string

	// ErrorLogFile names the server-side log with the per-record errors
	// of the execution, if the server produced one.
	ErrorLogFile string
}

// Success reports whether the execution completed without errors.
func (r *ProcessExecuteResult) Success() bool {
	return r.Status == ProcessCompletedSuccessfully
}

// ProcessService manages and executes TurboIntegrator processes.
type ProcessService struct {
	rest restExecutor
}

// Get returns the stored process definition.
func (s *ProcessService) Get(ctx context.Context, name string) (*Process, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/Processes('%s')", name),
	}

	var p Process
	if err := doJSON(ctx, s.rest, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Exists reports whether a process with the specified name is stored in the
// database.
func (s *ProcessService) Exists(ctx context.Context, name string) (bool, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/Processes('%s')?$select=Name", name),
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

// Execute runs a stored process with the specified parameter values and
// returns the execution outcome.
func (s *ProcessService) Execute(ctx context.Context, name string, parameters map[string]interface{}) (*ProcessExecuteResult, error) {
	type param struct {
		Name  string      `json:"Name"`
		Value interface{} `json:"Value"`
	}
	var body struct {
		Parameters []param `json:"Parameters,omitempty"`
	}
	for k, v := range parameters {
		body.Parameters = append(body.Parameters, param{Name: k, Value: v})
	}

	data, err := json.Marshal(&body)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   formatURL("/Processes('%s')/tm1.ExecuteWithReturn?$expand=ErrorLogFile", name),
		Body:   data,
	}
	return s.executeWithReturn(ctx, req)
}

// ExecuteProcessWithReturn runs the specified process definition without
// storing it, and returns the execution outcome. The database still logs
// per-record errors to a server-side file referenced in the result.
func (s *ProcessService) ExecuteProcessWithReturn(ctx context.Context, process *Process) (*ProcessExecuteResult, error) {
	if process == nil || process.Name == "" {
		return nil, tm1err.NewConfiguration("process with a name required")
	}

	body, err := json.Marshal(struct {
		Process *Process `json:"Process"`
	}{process})
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   "/ExecuteProcessWithReturn?$expand=ErrorLogFile",
		Body:   body,
	}
	return s.executeWithReturn(ctx, req)
}

// ErrorLogFileContent returns the content of a process error log produced
// by an execution.
func (s *ProcessService) ErrorLogFileContent(ctx context.Context, filename string) (string, error) {
	req := &Request{
		Method: http.MethodGet,
		Path:   formatURL("/ErrorLogFiles('%s')/Content", filename),
		Header: http.Header{"Accept": []string{"application/octet-stream"}},
	}

	resp, err := s.rest.Do(ctx, req)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

func (s *ProcessService) executeWithReturn(ctx context.Context, req *Request) (*ProcessExecuteResult, error) {
	var raw struct {
		ProcessExecuteStatusCode string `json:"ProcessExecuteStatusCode"`
		ErrorLogFile             *struct {
			Filename string `json:"Filename"`
		} `json:"ErrorLogFile"`
	}

	if err := doJSON(ctx, s.rest, req, &raw); err != nil {
		return nil, err
	}

	result := &ProcessExecuteResult{Status: raw.ProcessExecuteStatusCode}
	if raw.ErrorLogFile != nil {
		result.ErrorLogFile = raw.ErrorLogFile.Filename
	}
	return result, nil
}

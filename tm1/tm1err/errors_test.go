//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1err

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// TM1ErrorsTestSuite contains tests for the TM1 client errors.
type TM1ErrorsTestSuite struct {
	suite.Suite
}

func (suite *TM1ErrorsTestSuite) TestNewErrors() {
	e1 := NewConfiguration("tenant is required for mode %q", "IBMCloudAPIKey")
	suite.Equalf("tenant is required for mode \"IBMCloudAPIKey\"", e1.Message, "unexpected error message")
	suite.Containsf(e1.Error(), "[Configuration]", "unexpected error description")
	suite.Nilf(errors.Unwrap(e1), "ConfigurationError without cause should unwrap to nil")

	cause := errors.New("open config.properties: no such file or directory")
	e2 := NewConfigurationWithCause(cause, "cannot load credentials file")
	suite.Containsf(e2.Error(), cause.Error(), "unexpected error description")
	suite.Equalf(cause, errors.Unwrap(e2), "unexpected unwrapped cause")

	e3 := NewAuthentication(http.StatusUnauthorized, `{"error":{"message":"Invalid CAM credentials"}}`)
	suite.Equalf(http.StatusUnauthorized, e3.StatusCode, "unexpected status code")
	suite.Equalf("Unauthorized", e3.Reason, "unexpected reason phrase")
	suite.Containsf(e3.Error(), "Invalid CAM credentials", "unexpected error description")

	header := http.Header{"Content-Type": []string{"application/json"}}
	e4 := NewRest(http.MethodPost, "/api/v1/Cubes('plan')/tm1.Update", http.StatusConflict, "cube is locked", header)
	suite.Equalf(http.StatusConflict, e4.StatusCode, "unexpected status code")
	suite.Equalf("Conflict", e4.Reason, "unexpected reason phrase")
	suite.Containsf(e4.Error(), "POST /api/v1/Cubes('plan')/tm1.Update", "unexpected error description")
	suite.Containsf(e4.Error(), "cube is locked", "unexpected error description")

	timeout := 5 * time.Second
	e5 := NewTimeout(http.MethodGet, "/api/v1/Dimensions", timeout, context.DeadlineExceeded)
	suite.Equalf(timeout, e5.Timeout, "unexpected timeout value")
	suite.Containsf(e5.Error(), "did not complete within 5s", "unexpected error description")
	suite.Truef(errors.Is(e5, context.DeadlineExceeded),
		"TimeoutError should wrap context.DeadlineExceeded")
}

func (suite *TM1ErrorsTestSuite) TestWriteErrors() {
	statuses := []string{"HasMinorErrors", "Aborted"}
	logs := []string{"TM1ProcessError_20260311_tm1goxyz.log"}

	e1 := NewWriteFailure(statuses, logs, 2)
	suite.Equalf(2, e1.Attempts, "unexpected attempts count")
	suite.Containsf(e1.Error(), "all 2 groups failed", "unexpected error description")
	suite.Containsf(e1.Error(), "HasMinorErrors; Aborted", "unexpected error description")
	suite.Containsf(e1.Error(), logs[0], "unexpected error description")

	e2 := NewWritePartialFailure(statuses[:1], logs, 3)
	suite.Equalf(3, e2.Attempts, "unexpected attempts count")
	suite.Containsf(e2.Error(), "1 of 3 groups failed", "unexpected error description")
	suite.Containsf(e2.Error(), logs[0], "unexpected error description")

	e3 := NewWriteFailure([]string{"Aborted"}, nil, 1)
	suite.NotContainsf(e3.Error(), "error logs", "error description should omit empty log references")
}

func (suite *TM1ErrorsTestSuite) TestPredicates() {
	e1 := NewConfiguration("address or base URL is required")
	e2 := NewAuthentication(http.StatusForbidden, "")
	e3 := NewRest(http.MethodGet, "/api/v1/Cubes('x')", http.StatusNotFound, "", nil)
	e4 := NewRest(http.MethodGet, "/api/v1/Cubes", http.StatusUnauthorized, "", nil)
	e5 := NewTimeout(http.MethodGet, "/api/v1/Cubes", time.Second, nil)
	e6 := NewWriteFailure([]string{"Aborted"}, nil, 1)
	e7 := NewWritePartialFailure([]string{"Aborted"}, nil, 2)

	errs := [...]error{e1, e2, e3, e4, e5, e6, e7}
	for _, e := range errs {
		suite.Equalf(e == e1, IsConfiguration(e), "IsConfiguration(err=%v) returned a wrong result", e)
		suite.Equalf(e == e2, IsAuthentication(e), "IsAuthentication(err=%v) returned a wrong result", e)
		suite.Equalf(e == e3 || e == e4, IsRest(e), "IsRest(err=%v) returned a wrong result", e)
		suite.Equalf(e == e3, IsNotFound(e), "IsNotFound(err=%v) returned a wrong result", e)
		suite.Equalf(e == e4, IsUnauthorized(e), "IsUnauthorized(err=%v) returned a wrong result", e)
		suite.Equalf(e == e5, IsTimeout(e), "IsTimeout(err=%v) returned a wrong result", e)
		suite.Equalf(e == e6, IsWriteFailure(e), "IsWriteFailure(err=%v) returned a wrong result", e)
		suite.Equalf(e == e7, IsWritePartialFailure(e), "IsWritePartialFailure(err=%v) returned a wrong result", e)
	}

	suite.Truef(IsRest(e3, http.StatusNotFound, http.StatusConflict),
		"IsRest() should match any of the expected status codes")
	suite.Falsef(IsRest(e3, http.StatusConflict),
		"IsRest() should not match a different status code")

	// Predicates must see through wrapping.
	wrapped := fmt.Errorf("write to cube plan: %w", e3)
	suite.Truef(IsNotFound(wrapped), "IsNotFound() should match a wrapped RestError")

	otherErr := errors.New("this is not a TM1 error")
	suite.Falsef(IsRest(otherErr), "IsRest(err=%v) should have returned false", otherErr)
	suite.Falsef(IsTimeout(otherErr), "IsTimeout(err=%v) should have returned false", otherErr)
}

func TestTM1Errors(t *testing.T) {
	suite.Run(t, new(TM1ErrorsTestSuite))
}

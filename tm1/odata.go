//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// escapeName prepares a TM1 object name for embedding in an OData resource
// path. Single quotes are doubled per the OData string literal rules, and the
// characters that would terminate or reshape the URL are percent encoded.
func escapeName(name string) string {
	escaped := strings.ReplaceAll(name, "'", "''")
	return urlSignificant.Replace(escaped)
}

// urlSignificant encodes the bytes that url.Parse would otherwise interpret.
// The percent sign must be listed so already present escapes stay literal.
var urlSignificant = strings.NewReplacer(
	"%", "%25",
	"#", "%23",
	"?", "%3F",
	"&", "%26",
	"+", "%2B",
)

// formatURL builds a request path from a format string, escaping every
// argument as a TM1 object name. For example:
//
//	formatURL("/Cubes('%s')/Views('%s')", cube, view)
func formatURL(format string, names ...string) string {
	args := make([]interface{}, len(names))
	for i, name := range names {
		args[i] = escapeName(name)
	}
	return fmt.Sprintf(format, args...)
}

// queryEscape encodes a query option value, such as a $filter expression,
// for embedding in a request path. Spaces become %20 rather than the
// form-encoded plus sign.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// unmarshalScalar decodes an OData scalar response, as in {"value": "12.3.4"}.
// Note the lower case envelope key: OData wraps scalar results in "value",
// while instance update bodies use the property name "Value".
func unmarshalScalar(data []byte, v interface{}) error {
	env := struct {
		Value json.RawMessage `json:"value"`
	}{}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if env.Value == nil {
		return fmt.Errorf("response carries no value field: %s", truncateBody(data))
	}
	return json.Unmarshal(env.Value, v)
}

// truncateBody shortens response bodies embedded in error messages.
func truncateBody(data []byte) string {
	const limit = 256
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}

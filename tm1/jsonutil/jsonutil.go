//
// Copyright (c) 2021, 2024 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package jsonutil provides utility functions for JSON encoding and field
// extraction.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

const emptyJSONObject = "{}"

// AsJSON encodes the specified value into a json string.
func AsJSON(v interface{}) string {
	return asJSONString(v, false)
}

// AsPrettyJSON encodes the specified value into a json string, adding
// appropriate indents in the returned string.
func AsPrettyJSON(v interface{}) string {
	return asJSONString(v, true)
}

func asJSONString(v interface{}, pretty bool) string {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return emptyJSONObject
	}
	return string(b)
}

// ToObject parses the JSON-encoded string into a generic object map.
func ToObject(jsonStr string) (v map[string]interface{}, err error) {
	err = json.Unmarshal([]byte(jsonStr), &v)
	return v, err
}

// GetString parses the JSON-encoded data, looks for the specified field in
// the top level JSON object and returns the value of the field if it exists
// and its value is a JSON String.
func GetString(data []byte, field string) (string, error) {
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}

	s, ok := v[field]
	if !ok {
		return "", fmt.Errorf("cannot find the %q field from JSON %q", field, string(data))
	}

	if s, ok := s.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("the value of %q field is not a string", field)
}

// GetNumber parses the JSON-encoded data, looks for the specified field in
// the top level JSON object and returns the value of the field if it exists
// and its value is a JSON Number.
func GetNumber(data []byte, field string) (float64, error) {
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}

	s, ok := v[field]
	if !ok {
		return 0, fmt.Errorf("cannot find the %q field from JSON %q", field, string(data))
	}

	if s, ok := s.(float64); ok {
		return s, nil
	}
	return 0, fmt.Errorf("the value of %q field is not a float64", field)
}

// GetStringValues parses the JSON-encoded data and returns the values of the
// specified fields in the top level JSON object. All of the fields must be
// present and must be JSON Strings.
func GetStringValues(data []byte, fieldNames ...string) (map[string]string, error) {
	var v map[string]interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	m := make(map[string]string, len(fieldNames))
	for _, key := range fieldNames {
		value, ok := v[key]
		if !ok {
			return nil, fmt.Errorf("cannot find the %q field from json string %s", key, string(data))
		}

		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("the value of %q field is not a string", key)
		}
		m[key] = s
	}

	return m, nil
}

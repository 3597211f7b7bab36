//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"strings"
	"testing"
)

func TestEscapeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sales", "Sales"},
		{"O'Brien", "O''Brien"},
		{"Plan & Actual", "Plan %26 Actual"},
		{"FY24#Q1", "FY24%23Q1"},
		{"Why?", "Why%3F"},
		{"A+B", "A%2BB"},
		{"50% Share", "50%25 Share"},
		{"}CubeProperties", "}CubeProperties"},
	}

	for i, r := range tests {
		if got := escapeName(r.in); got != r.want {
			t.Errorf("Test-%d: escapeName(%q) got %q, want %q", i, r.in, got, r.want)
		}
	}
}

func TestFormatURL(t *testing.T) {
	got := formatURL("/Cubes('%s')/Views('%s')", "Sales", "Q1 O'Brien")
	want := "/Cubes('Sales')/Views('Q1 O''Brien')"
	if got != want {
		t.Errorf("formatURL() got %q, want %q", got, want)
	}
}

func TestQueryEscape(t *testing.T) {
	got := queryEscape("State ne 'Idle'")
	want := "State%20ne%20%27Idle%27"
	if got != want {
		t.Errorf("queryEscape() got %q, want %q", got, want)
	}
}

func TestUnmarshalScalar(t *testing.T) {
	var s string
	if err := unmarshalScalar([]byte(`{"value":"11.8.01500.2","@odata.context":"..."}`), &s); err != nil {
		t.Fatalf("unmarshalScalar() got error %v", err)
	}
	if s != "11.8.01500.2" {
		t.Errorf("unmarshalScalar() got %q, want %q", s, "11.8.01500.2")
	}

	var n float64
	if err := unmarshalScalar([]byte(`{"value":12.5}`), &n); err != nil {
		t.Fatalf("unmarshalScalar() got error %v", err)
	}
	if n != 12.5 {
		t.Errorf("unmarshalScalar() got %v, want 12.5", n)
	}

	if err := unmarshalScalar([]byte(`{"Value":"wrong case"}`), &s); err == nil {
		t.Error("unmarshalScalar() should reject a response without a value field")
	}
	if err := unmarshalScalar([]byte(`not json`), &s); err == nil {
		t.Error("unmarshalScalar() should reject malformed JSON")
	}
}

func TestTruncateBody(t *testing.T) {
	short := "short body"
	if got := truncateBody([]byte(short)); got != short {
		t.Errorf("truncateBody() got %q, want %q", got, short)
	}

	long := strings.Repeat("x", 1000)
	got := truncateBody([]byte(long))
	if len(got) != 256+len("...") || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateBody() got %d bytes, want 259 ending in ellipsis", len(got))
	}
}

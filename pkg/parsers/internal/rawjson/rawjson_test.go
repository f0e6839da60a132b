package rawjson

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestPath(t *testing.T) {
	v := decode(t, `{"a":{"b":{"c":3}},"n":null}`)

	got, ok := Path(v, "a", "b", "c")
	if !ok || got != 3.0 {
		t.Errorf("Path(a.b.c) = %v, %v", got, ok)
	}
	if _, ok := Path(v, "a", "x"); ok {
		t.Error("Path(a.x) should be missing")
	}
	if _, ok := Path(v, "a", "b", "c", "d"); ok {
		t.Error("Path through a number should fail")
	}
	if got, ok := Path(v, "n"); !ok || got != nil {
		t.Errorf("Path(n) = %v, %v, want nil, true", got, ok)
	}
}

func TestHas(t *testing.T) {
	obj, _ := Object(decode(t, `{"a":1,"n":null}`))
	if !Has(obj, "a") {
		t.Error("Has(a) = false")
	}
	if Has(obj, "n") {
		t.Error("Has(n) = true for null")
	}
	if Has(obj, "missing") {
		t.Error("Has(missing) = true")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0.0, false},
		{1.0, true},
		{"", false},
		{"false", false},
		{"yes", true},
		{[]any{}, true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStrings(t *testing.T) {
	if got := Strings("CWE-502: Deserialization of Untrusted Data"); len(got) != 1 {
		t.Errorf("Strings(string) = %v, want one element", got)
	}
	if got := Strings(decode(t, `["a", 1, "", "b"]`)); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Strings(array) = %v, want [a b]", got)
	}
	if got := Strings(5.0); got != nil {
		t.Errorf("Strings(number) = %v, want nil", got)
	}
	if got := Strings(""); got != nil {
		t.Errorf("Strings(empty) = %v, want nil", got)
	}
}

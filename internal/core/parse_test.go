package core

import (
	"errors"
	"testing"
)

func TestParseTruthy(t *testing.T) {
	cases := []struct {
		name    string
		in      any
		success bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"string", "ok", true},
		{"zero int", 0, true}, // non-bool values are truthy by presence
		{"map", map[string]any{"a": 1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			success, err := Parse(c.in)
			if err != nil {
				t.Fatalf("unexpected exception: %v", err)
			}
			if success != c.success {
				t.Errorf("Parse(%v) = %v, want %v", c.in, success, c.success)
			}
		})
	}
}

func TestParseException(t *testing.T) {
	exc := errors.New("boom")
	success, err := Parse(exc)
	if success {
		t.Error("expected success=false for an exception-like value")
	}
	if !errors.Is(err, exc) {
		t.Errorf("expected exception to be returned, got %v", err)
	}
}

func TestNormalizePlainValue(t *testing.T) {
	in := map[string]any{"k": "v"}
	out := Normalize(true, in)
	if !out.Success || out.Err != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Context["k"] != "v" {
		t.Errorf("expected input context to be carried through, got %+v", out.Context)
	}
}

func TestNormalizeContextCarrier(t *testing.T) {
	newCtx := map[string]any{"token": "abc"}
	out := Normalize(Pair{V: true, C: newCtx}, map[string]any{"k": "v"})
	if !out.Success {
		t.Error("expected success=true")
	}
	if out.Context["token"] != "abc" {
		t.Errorf("expected carrier context to replace input, got %+v", out.Context)
	}
}

func TestNormalizeExceptionInPair(t *testing.T) {
	exc := errors.New("failed")
	out := Normalize(Pair{V: exc, C: map[string]any{"x": 1}}, nil)
	if out.Success {
		t.Error("expected success=false")
	}
	if !errors.Is(out.Err, exc) {
		t.Errorf("expected exception %v, got %v", exc, out.Err)
	}
}

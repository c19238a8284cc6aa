package httpstep

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"maestro/internal/config"
	"maestro/internal/core"
)

func TestStepSuccessfulGET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	step := New(
		config.StepConfig{Name: "test", Method: "GET", URL: server.URL},
		&http.Client{Timeout: 5 * time.Second},
		nil,
	)

	ctx := core.ContextWithUserID(context.Background(), 1)
	result := step.Request(ctx, core.NewVariables())

	outcome := core.Normalize(result, nil)
	if !outcome.Success {
		t.Fatalf("expected success, got err=%v", outcome.Err)
	}
}

func TestStepHTTPErrorBecomesException(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	step := New(
		config.StepConfig{Name: "test", Method: "GET", URL: server.URL},
		&http.Client{Timeout: 5 * time.Second},
		nil,
	)

	ctx := core.ContextWithUserID(context.Background(), 1)
	result := step.Request(ctx, core.NewVariables())

	outcome := core.Normalize(result, nil)
	if outcome.Success {
		t.Error("expected failure")
	}
	if outcome.Err == nil {
		t.Error("expected a non-nil exception")
	}
}

func TestStepConnectionErrorBecomesException(t *testing.T) {
	step := New(
		config.StepConfig{Name: "test", Method: "GET", URL: "http://127.0.0.1:0"},
		&http.Client{Timeout: time.Second},
		nil,
	)

	ctx := core.ContextWithUserID(context.Background(), 1)
	result := step.Request(ctx, core.NewVariables())

	outcome := core.Normalize(result, nil)
	if outcome.Success {
		t.Error("expected failure")
	}
	if outcome.Err == nil {
		t.Error("expected a non-nil exception")
	}
}

func TestStepExtractsVariablesIntoContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "abc123"}`))
	}))
	defer server.Close()

	step := New(
		config.StepConfig{
			Name:    "login",
			Method:  "GET",
			URL:     server.URL,
			Extract: map[string]string{"authToken": "$.token"},
		},
		&http.Client{Timeout: 5 * time.Second},
		nil,
	)

	ctx := core.ContextWithUserID(context.Background(), 1)
	result := step.Request(ctx, core.NewVariables())

	carrier, ok := result.(core.ContextCarrier)
	if !ok {
		t.Fatalf("expected a ContextCarrier result, got %T", result)
	}
	if carrier.Context()["authToken"] != "abc123" {
		t.Errorf("got %v, want abc123", carrier.Context()["authToken"])
	}
}

func TestStepSubstitutesURLFromVariables(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	step := New(
		config.StepConfig{Name: "test", Method: "GET", URL: server.URL + "/${id}"},
		&http.Client{Timeout: 5 * time.Second},
		nil,
	)

	vars := core.NewVariables()
	vars.Set("id", "42")
	ctx := core.ContextWithUserID(context.Background(), 1)
	step.Request(ctx, vars)

	if gotPath != "/42" {
		t.Errorf("got path %q, want /42", gotPath)
	}
}

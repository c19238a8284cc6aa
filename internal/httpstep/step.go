// Package httpstep builds core.Step values that issue templated HTTP
// requests: substitute ${var}/${env:VAR} placeholders into the URL, body,
// and headers, send the request, and optionally extract response fields
// back into the scenario's variables via JSONPath.
package httpstep

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"maestro/internal/config"
	"maestro/internal/core"
	"maestro/internal/template"
)

const (
	// maxDebugBodySize limits the response body logged in verbose mode.
	maxDebugBodySize = 4096
	// maxExtractBodySize limits the response body read for variable
	// extraction — larger than the debug limit to support extracting from
	// bigger JSON responses.
	maxExtractBodySize = 10 * 1024 * 1024
)

// New builds a core.Step from cfg. client and debug may be shared across
// every step built for a scenario; debug may be nil.
func New(cfg config.StepConfig, client *http.Client, debug *DebugLogger) core.Step {
	return core.Step{
		StepName: cfg.Name,
		Request:  request(cfg, client, debug),
	}
}

func request(cfg config.StepConfig, client *http.Client, debug *DebugLogger) core.RequestFunc {
	return func(ctx context.Context, vars core.Variables) any {
		userID := core.UserIDFromContext(ctx)
		start := time.Now()

		url, err := template.Substitute(cfg.URL, vars)
		if err != nil {
			debug.LogError(userID, cfg.Name, err.Error(), time.Since(start))
			return err
		}

		body, err := template.Substitute(cfg.Body, vars)
		if err != nil {
			debug.LogError(userID, cfg.Name, err.Error(), time.Since(start))
			return err
		}

		headers, err := template.SubstituteMap(cfg.Headers, vars)
		if err != nil {
			debug.LogError(userID, cfg.Name, err.Error(), time.Since(start))
			return err
		}

		req, err := http.NewRequestWithContext(ctx, cfg.Method, url, strings.NewReader(body))
		if err != nil {
			debug.LogError(userID, cfg.Name, err.Error(), time.Since(start))
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		debug.LogRequest(userID, cfg.Name, req)

		resp, err := client.Do(req)
		if err != nil {
			debug.LogError(userID, cfg.Name, err.Error(), time.Since(start))
			return err
		}
		defer resp.Body.Close()

		needsExtract := len(cfg.Extract) > 0
		limit := int64(maxDebugBodySize)
		if needsExtract {
			limit = maxExtractBodySize
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, limit))
		_, _ = io.Copy(io.Discard, resp.Body)

		debugBody := respBody
		if len(debugBody) > maxDebugBodySize {
			debugBody = debugBody[:maxDebugBodySize]
		}
		debug.LogResponse(userID, cfg.Name, resp, debugBody, time.Since(start))

		if resp.StatusCode >= 400 {
			return errStatus{code: resp.StatusCode, status: resp.Status}
		}

		next := vars.Snapshot()
		if needsExtract {
			extracted, err := template.Extract(respBody, cfg.Extract)
			if err != nil {
				return err
			}
			for k, v := range extracted {
				next[k] = v
			}
		}
		return core.Pair{V: true, C: next}
	}
}

// errStatus is the exception value a failed (>=400) HTTP response turns
// into, carrying enough detail for the debug log and error sink without
// forcing a string-only error.
type errStatus struct {
	code   int
	status string
}

func (e errStatus) Error() string { return e.status }

// Package testutil provides httptest helpers shared by the package tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Route keys requests by method and path, e.g. "GET /api/ipam/vrfs/".
type Route struct {
	Method string
	Path   string
}

// NewServer creates a test server that dispatches on method + path and
// fails the test on any request it has no handler for.
func NewServer(t *testing.T, handlers map[Route]http.HandlerFunc) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[Route{Method: r.Method, Path: r.URL.Path}]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
}

// JSONHandler responds with the given status and the JSON encoding of body.
func JSONHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

// Envelope builds the Netbox collection envelope {count, next, previous,
// results}. Pass next as nil for a terminal page.
func Envelope(count int, next any, results ...map[string]any) map[string]any {
	if results == nil {
		results = []map[string]any{}
	}
	return map[string]any{
		"count":    count,
		"next":     next,
		"previous": nil,
		"results":  results,
	}
}

// DecodeBody unmarshals a request body into a generic map, keeping numbers
// as json.Number.
func DecodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&body))
	return body
}

// EchoWithID responds to a create or update request by echoing the request
// body back with the given id set, the way Netbox write endpoints answer.
func EchoWithID(t *testing.T, id int) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		body := DecodeBody(t, r)
		body["id"] = id
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

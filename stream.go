package netboxapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Stream is a lazy, pull-driven sequence of mappers over a collection
// response. Pages after the first are fetched only when the caller
// consumes past a page boundary, so abandoning a stream early never
// triggers further requests. A stream is finite and not restartable;
// call Get again for a fresh one.
//
// Usage follows the sql.Rows pattern:
//
//	stream, err := mapper.Get(ctx, nil)
//	for stream.Next(ctx) {
//	    obj := stream.Mapper()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	client *Client
	wrap   func(row map[string]any) *Mapper

	rows    []map[string]any // unread rows of the current page
	nextURL string           // next page URL, empty when terminal
	limit   int              // caller-imposed total cap, 0 means none
	yielded int

	cur  *Mapper
	err  error
	done bool
}

// newStream builds a stream over an already-fetched first page. The limit
// is taken from the caller's "limit" query parameter: Netbox uses it as
// the page size, but the stream also honors it as the total cap across
// pages.
func newStream(client *Client, query url.Values, rows []map[string]any, nextURL string, wrap func(map[string]any) *Mapper) *Stream {
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return &Stream{
		client:  client,
		wrap:    wrap,
		rows:    rows,
		nextURL: nextURL,
		limit:   limit,
	}
}

// Next advances the stream to the next object, fetching the next page
// when the current one is exhausted. It returns false when the stream is
// done or failed; check Err afterwards.
func (s *Stream) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}
	if s.limit > 0 && s.yielded >= s.limit {
		s.done = true
		return false
	}

	for len(s.rows) == 0 {
		if s.nextURL == "" {
			s.done = true
			return false
		}
		if err := s.fetchNextPage(ctx); err != nil {
			s.err = err
			return false
		}
	}

	row := s.rows[0]
	s.rows = s.rows[1:]
	s.cur = s.wrap(row)
	s.yielded++
	return true
}

// Mapper returns the object the stream currently points at. Only valid
// after a Next call that returned true.
func (s *Stream) Mapper() *Mapper { return s.cur }

// Err returns the first error encountered while iterating, if any.
func (s *Stream) Err() error { return s.err }

// Collect drains the stream into a slice.
func (s *Stream) Collect(ctx context.Context) ([]*Mapper, error) {
	var out []*Mapper
	for s.Next(ctx) {
		out = append(out, s.Mapper())
	}
	return out, s.Err()
}

// fetchNextPage follows the envelope's next URL verbatim; it already
// encodes limit and offset.
func (s *Stream) fetchNextPage(ctx context.Context) error {
	resp, err := s.client.transport.Get(ctx, s.nextURL, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return statusError(http.MethodGet, s.nextURL, resp.StatusCode)
	}

	rows, next, err := decodeRows(resp)
	if err != nil {
		return err
	}
	s.rows = rows
	s.nextURL = next
	return nil
}

// decodeRows turns a collection response into its rows. Three shapes are
// accepted: the Netbox envelope {count, next, previous, results}, a bare
// JSON array (some endpoints return one), and a single object, which
// yields one row. A missing or null next key means the page is terminal.
func decodeRows(resp *Response) (rows []map[string]any, nextURL string, err error) {
	var body any
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, "", err
	}

	switch v := body.(type) {
	case map[string]any:
		rawResults, isEnvelope := v["results"]
		if !isEnvelope {
			// Single object response.
			return []map[string]any{v}, "", nil
		}
		results, ok := rawResults.([]any)
		if !ok && rawResults != nil {
			return nil, "", errors.Newf("unexpected results of type %T", rawResults)
		}
		rows, err := objectRows(results)
		if err != nil {
			return nil, "", err
		}
		next, _ := v["next"].(string)
		return rows, next, nil
	case []any:
		rows, err := objectRows(v)
		if err != nil {
			return nil, "", err
		}
		return rows, "", nil
	default:
		return nil, "", errors.Newf("unexpected collection response of type %T", body)
	}
}

func objectRows(items []any) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Newf("unexpected %T in collection results", item)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Package httpsource fetches subthemes from an HTTP endpoint serving either
// a CSV export or a JSON array.
package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/crimson-sun/cultura/internal/source"
	"github.com/crimson-sun/cultura/internal/source/csvsource"
)

func init() {
	source.Register("http", func(cfg source.Config) (source.Source, error) {
		return New(cfg.Path, cfg.Column, WithToken(cfg.Token)), nil
	})
}

// Option configures a Source.
type Option func(*Source)

// WithToken sends a Bearer token with every request.
func WithToken(token string) Option {
	return func(s *Source) { s.client.token = token }
}

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) { s.client.httpClient.Timeout = d }
}

// WithBackoff sets the first retry delay; later retries double it.
// Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(s *Source) { s.client.backoff = d }
}

// Source fetches the URL on each call to Subthemes.
type Source struct {
	url    string
	column string
	client *client
}

// New creates an HTTP source. An empty column means csvsource.DefaultColumn.
func New(url, column string, opts ...Option) *Source {
	if column == "" {
		column = csvsource.DefaultColumn
	}
	s := &Source{
		url:    url,
		column: column,
		client: &client{
			httpClient: &http.Client{Timeout: 30 * time.Second},
			backoff:    time.Second,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subthemes decodes a JSON body (an array of strings, or of objects holding
// the column as a string field) or otherwise reads the column of a CSV
// body. Values are trimmed and empty ones skipped.
func (s *Source) Subthemes(ctx context.Context) ([]string, error) {
	body, ctype, err := s.client.get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if strings.Contains(ctype, "json") || bytes.HasPrefix(trimmed, []byte("[")) {
		vals, err := decodeJSON(trimmed, s.column)
		if err != nil {
			return nil, fmt.Errorf("http source: %s: %w", s.url, err)
		}
		return vals, nil
	}
	vals, err := csvsource.ReadColumn(bytes.NewReader(body), s.column)
	if err != nil {
		return nil, fmt.Errorf("http source: %s: %w", s.url, err)
	}
	return vals, nil
}

func decodeJSON(data []byte, column string) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var out []string
	for i, item := range raw {
		var v string
		if err := json.Unmarshal(item, &v); err != nil {
			var obj map[string]any
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("item %d is neither a string nor an object", i)
			}
			v, _ = obj[column].(string)
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Source) Close() error {
	s.client.httpClient.CloseIdleConnections()
	return nil
}

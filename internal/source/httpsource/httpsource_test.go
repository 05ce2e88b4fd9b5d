package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func fast() Option { return WithBackoff(time.Millisecond) }

func TestSubthemes_CSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("\ufeffid,sub_theme\n1, Pay equity \n2,\n3,Team spirit\n"))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "").Subthemes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Pay equity", "Team spirit"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Subthemes() = %v, want %v", got, want)
	}
}

func TestSubthemes_JSONStrings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["Pay equity", "  ", "Team spirit", null]`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "").Subthemes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Pay equity", "Team spirit"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Subthemes() = %v, want %v", got, want)
	}
}

func TestSubthemes_JSONObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No JSON content type: the leading bracket is enough.
		w.Write([]byte(`[{"topic":"Flexible hours","n":3},{"topic":7},{"other":"x"}]`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "topic").Subthemes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Flexible hours"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Subthemes() = %v, want %v", got, want)
	}
}

func TestSubthemes_BearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "", WithToken("secret-token-123")).Subthemes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer secret-token-123" {
		t.Fatalf("expected 'Bearer secret-token-123', got %q", gotAuth)
	}
}

func TestSubthemes_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "").Subthemes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
}

func TestSubthemes_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`not found`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Subthemes(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 404 || apiErr.Body != "not found" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestSubthemes_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(503)
			w.Write([]byte(`service unavailable`))
			return
		}
		w.Write([]byte(`["Team spirit"]`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "", fast()).Subthemes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || calls.Load() != 2 {
		t.Fatalf("got %v after %d calls", got, calls.Load())
	}
}

func TestSubthemes_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(429)
		w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", fast()).Subthemes(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Fatalf("expected 429 *APIError, got %v", err)
	}
	// 1 initial + 3 retries = 4 total calls
	if calls.Load() != 4 {
		t.Fatalf("expected 4 calls, got %d", calls.Load())
	}
}

func TestSubthemes_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL, "").Subthemes(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDelay(t *testing.T) {
	c := &client{backoff: time.Second}
	if got := c.delay(3, nil); got != 4*time.Second {
		t.Errorf("delay(3) = %v, want 4s", got)
	}
	if got := c.delay(1, &APIError{StatusCode: 429, retryAfter: "7"}); got != 7*time.Second {
		t.Errorf("delay with Retry-After = %v, want 7s", got)
	}
}

package fx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubSource struct {
	calls atomic.Int32
	rate  float64
	err   error
}

func (s *stubSource) FetchRate(context.Context) (float64, error) {
	s.calls.Add(1)
	return s.rate, s.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestProviderCachesWithinTTL(t *testing.T) {
	src := &stubSource{rate: 1387.25}
	clk := &clock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	p := NewProvider(src, Config{TTL: time.Hour, Now: clk.Now})
	ctx := context.Background()

	first := p.Quote(ctx)
	if first.Rate != 1387.25 || first.Cached || first.Fallback {
		t.Fatalf("first Quote() = %+v", first)
	}
	if want := clk.Now().Add(time.Hour); !first.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", first.ExpiresAt, want)
	}

	clk.Advance(30 * time.Minute)
	second := p.Quote(ctx)
	if !second.Cached || second.Rate != 1387.25 || !second.FetchedAt.Equal(first.FetchedAt) {
		t.Errorf("second Quote() = %+v, want cached copy of first", second)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source called %d times, want 1", n)
	}

	clk.Advance(31 * time.Minute)
	src.rate = 1400
	third := p.Quote(ctx)
	if third.Cached || third.Rate != 1400 {
		t.Errorf("third Quote() = %+v, want fresh 1400", third)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2", n)
	}
}

func TestProviderFallsBackWithoutCaching(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	p := NewProvider(src, Config{})
	ctx := context.Background()

	q := p.Quote(ctx)
	if q.Rate != DefaultRate || !q.Fallback || q.Cached {
		t.Fatalf("Quote() = %+v, want fallback 1350", q)
	}
	if got := p.Rate(ctx); got != DefaultRate {
		t.Errorf("Rate() = %v, want %v", got, DefaultRate)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("source called %d times, want 2 (fallback must not be cached)", n)
	}

	src.err, src.rate = nil, 1333
	if got := p.Rate(ctx); got != 1333 {
		t.Errorf("Rate() after recovery = %v, want 1333", got)
	}
}

func TestProviderCustomDefault(t *testing.T) {
	p := NewProvider(&stubSource{err: errors.New("down")}, Config{DefaultRate: 1300})
	if got := p.Rate(context.Background()); got != 1300 {
		t.Errorf("Rate() = %v, want 1300", got)
	}
}

func TestHTTPSource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		path    string
		want    float64
		wantErr bool
	}{
		{"rates object", http.StatusOK, `{"base":"USD","rates":{"KRW":1375.5,"EUR":0.92}}`, "$.rates.KRW", 1375.5, false},
		{"custom path", http.StatusOK, `{"conversion_rates":{"KRW":1401}}`, "$.conversion_rates.KRW", 1401, false},
		{"missing key", http.StatusOK, `{"rates":{"EUR":0.92}}`, "$.rates.KRW", 0, true},
		{"string value", http.StatusOK, `{"rates":{"KRW":"1375"}}`, "$.rates.KRW", 0, true},
		{"zero rate", http.StatusOK, `{"rates":{"KRW":0}}`, "$.rates.KRW", 0, true},
		{"server error", http.StatusInternalServerError, `oops`, "$.rates.KRW", 0, true},
		{"invalid json", http.StatusOK, `{`, "$.rates.KRW", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewHTTPSource(srv.URL, tt.path).FetchRate(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchRate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FetchRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
	"github.com/tjfontaine/polyglot-dashboard/internal/testutil"
)

func TestClient_LatestRates_Recorded(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "exchangerate_eur")
	defer cleanup()

	c := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	q, err := c.LatestRates(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("LatestRates() error = %v", err)
	}
	if q.USD != 1.1674 {
		t.Errorf("USD = %v, want 1.1674", q.USD)
	}
	if q.EUR != 1 {
		t.Errorf("EUR = %v, want 1", q.EUR)
	}
}

func TestClient_LatestRates_RequestShape(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"result":"success","base_code":"JPY","conversion_rates":{"USD":0.0066,"EUR":0.0057}}`))
	}))
	defer srv.Close()

	c := NewClient("k123", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	if _, err := c.LatestRates(context.Background(), "jpy"); err != nil {
		t.Fatalf("LatestRates() error = %v", err)
	}
	if gotPath != "/v6/k123/latest/JPY" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestClient_LatestRates_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind domain.ErrorKind
		wantMsg  string
	}{
		{
			name:     "unsupported code",
			status:   http.StatusNotFound,
			body:     `{"result":"error","error-type":"unsupported-code"}`,
			wantKind: domain.KindUpstreamRejected,
			wantMsg:  "unsupported-code",
		},
		{
			name:     "invalid key with 200",
			status:   http.StatusOK,
			body:     `{"result":"error","error-type":"invalid-key"}`,
			wantKind: domain.KindUpstreamRejected,
			wantMsg:  "invalid-key",
		},
		{
			name:     "missing EUR",
			status:   http.StatusOK,
			body:     `{"result":"success","conversion_rates":{"USD":1}}`,
			wantKind: domain.KindMalformedPayload,
		},
		{
			name:     "no rate table",
			status:   http.StatusOK,
			body:     `{"result":"success"}`,
			wantKind: domain.KindMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
			q, err := c.LatestRates(context.Background(), "XXX")
			if err == nil {
				t.Fatalf("expected error, got %+v", q)
			}
			if kind := domain.KindOf(err); kind != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", kind, tt.wantKind)
			}
			if tt.wantMsg != "" {
				up := err.(*domain.UpstreamError)
				if up.Message != tt.wantMsg {
					t.Errorf("Message = %q, want %q", up.Message, tt.wantMsg)
				}
			}
		})
	}
}

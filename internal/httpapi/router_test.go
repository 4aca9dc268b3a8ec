package httpapi

import (
	"net/http"
	"strings"
	"testing"
)

func TestRouter_HealthzAndNotFound(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("healthz status=%d body=%q", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodGet, "/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"NOT_FOUND"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}

	rr = f.do(t, http.MethodPost, "/healthz", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /healthz status=%d", rr.Code)
	}
}

func TestMetrics_CountsRequestsAndErrors(t *testing.T) {
	f := newFixture(t, nil)

	if rr := f.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/sub/unknown", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("sub status=%d", rr.Code)
	}

	rr := f.do(t, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`subforge_http_requests_total{pattern="GET /healthz",status="200"} 1`,
		`subforge_http_requests_total{pattern="GET /sub/{token}",status="404"} 1`,
		`subforge_app_errors_total{code="SUBSCRIPTION_NOT_FOUND",stage="validate_request"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics body missing %q, got:\n%s", want, body)
		}
	}
}

func TestMetrics_IsolatedPerHandler(t *testing.T) {
	a := newFixture(t, nil)
	b := newFixture(t, nil)
	a.do(t, http.MethodGet, "/healthz", "", nil)

	body := b.do(t, http.MethodGet, "/metrics", "", nil).Body.String()
	if strings.Contains(body, `pattern="GET /healthz"`) {
		t.Fatalf("metrics leaked across handlers:\n%s", body)
	}
}

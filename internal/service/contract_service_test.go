package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func contractHost(t *testing.T, files map[string]bool, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if files[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestContractLookupPrefersPDF(t *testing.T) {
	host := contractHost(t, map[string]bool{
		"/ten-1.pdf": true,
		"/ten-1.jpg": true,
	}, nil)
	defer host.Close()

	svc := NewContractService(host.URL, time.Minute, nil)
	doc, err := svc.Lookup(context.Background(), "ten-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if doc == nil || doc.Format != "pdf" {
		t.Fatalf("expected pdf document, got %+v", doc)
	}
	if doc.URL != host.URL+"/ten-1.pdf" {
		t.Fatalf("url = %s", doc.URL)
	}
}

func TestContractLookupFallsBackToJPG(t *testing.T) {
	host := contractHost(t, map[string]bool{"/ten-2.jpg": true}, nil)
	defer host.Close()

	svc := NewContractService(host.URL, time.Minute, nil)
	doc, err := svc.Lookup(context.Background(), "ten-2")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if doc == nil || doc.Format != "jpg" {
		t.Fatalf("expected jpg document, got %+v", doc)
	}
}

func TestContractLookupAbsenceIsNotAnError(t *testing.T) {
	host := contractHost(t, nil, nil)
	defer host.Close()

	svc := NewContractService(host.URL, time.Minute, nil)
	doc, err := svc.Lookup(context.Background(), "ten-3")
	if err != nil {
		t.Fatalf("lookup must not fail on absence: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestContractLookupCachesNegativeResults(t *testing.T) {
	var hits int32
	host := contractHost(t, nil, &hits)
	defer host.Close()

	svc := NewContractService(host.URL, time.Minute, nil)
	if _, err := svc.Lookup(context.Background(), "ten-4"); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	probes := atomic.LoadInt32(&hits)

	if _, err := svc.Lookup(context.Background(), "ten-4"); err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != probes {
		t.Fatalf("second lookup must be served from cache")
	}
}

func TestContractLookupUnreachableHostDegradesToNotFound(t *testing.T) {
	host := contractHost(t, nil, nil)
	url := host.URL
	host.Close()

	svc := NewContractService(url, time.Minute, nil)
	doc, err := svc.Lookup(context.Background(), "ten-5")
	if err != nil {
		t.Fatalf("probe failure must degrade, got %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

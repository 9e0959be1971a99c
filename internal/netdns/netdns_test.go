package netdns

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLookupLiteral(t *testing.T) {
	r := New()
	for _, in := range []string{"127.0.0.1", "::1"} {
		got, err := r.Lookup(context.Background(), in)
		if err != nil || got != in {
			t.Fatalf("Lookup(%q) = %q, %v", in, got, err)
		}
	}
}

func TestLookupLocalhost(t *testing.T) {
	r := New()
	r.Servers = nil
	ip, err := r.Lookup(context.Background(), "localhost")
	if err != nil {
		t.Skipf("no local resolver: %v", err)
	}
	if !net.ParseIP(ip).IsLoopback() {
		t.Fatalf("localhost resolved to %s", ip)
	}
}

func TestDialContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	r := New()
	client := &http.Client{Transport: &http.Transport{DialContext: r.DialContext}}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if _, err := r.DialContext(context.Background(), "tcp", "no-port"); err == nil {
		t.Fatal("address without port accepted")
	}
}

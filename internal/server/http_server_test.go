package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

type failingListener struct {
	addr net.Addr
}

var errAccept = errors.New("accept failure")

func (l *failingListener) Accept() (net.Conn, error) { return nil, errAccept }
func (l *failingListener) Close() error              { return nil }
func (l *failingListener) Addr() net.Addr            { return l.addr }

func TestNetHTTPServerReturnsAcceptFailure(t *testing.T) {
	l := &failingListener{addr: &net.TCPAddr{IP: net.IPv4zero, Port: 0}}
	s := netHTTPServer{srv: &http.Server{Handler: http.NewServeMux()}, listener: l}

	if err := s.ListenAndServe(); !errors.Is(err, errAccept) {
		t.Fatalf("expected accept failure, got %v", err)
	}
}

func TestNetHTTPServerServesScheduleRoutesOnListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /schedule/revision", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "7")
	})
	s := netHTTPServer{srv: &http.Server{Handler: mux}, listener: l}
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	resp, err := http.Get("http://" + l.Addr().String() + "/schedule/revision")
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "7" {
		t.Fatalf("expected revision 7, got %d %q", resp.StatusCode, body)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("expected server closed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("serve did not return after shutdown")
	}
}

func TestMetricsServerExposesAddrAndHandler(t *testing.T) {
	handler := http.NewServeMux()
	s := netHTTPServer{srv: &http.Server{Addr: ":9464", Handler: handler}}

	if s.Addr() != ":9464" {
		t.Fatalf("expected metrics addr, got %q", s.Addr())
	}
	if s.Handler() != handler {
		t.Fatalf("expected metrics handler passthrough")
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown of idle server: %v", err)
	}
}

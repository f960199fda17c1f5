package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/imgvault/imgvault/internal/testutil"
)

func newTestServer() *Server {
	return New(
		http.NewServeMux(),
		0,
		time.Second,
		time.Second,
		2*time.Second,
		testutil.NewTestLogger(),
	)
}

func TestServer_ShutdownRunsHooksInReverseOrder(t *testing.T) {
	srv := newTestServer()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		srv.OnShutdown(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := srv.shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"third", "second", "first"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestServer_ShutdownRunsAllHooksDespiteFailure(t *testing.T) {
	srv := newTestServer()

	hookErr := errors.New("worker stuck")
	var laterRan bool

	srv.OnShutdown("later", func(ctx context.Context) error {
		laterRan = true
		return nil
	})
	srv.OnShutdown("failing", func(ctx context.Context) error {
		return hookErr
	})

	err := srv.shutdown()
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if !laterRan {
		t.Error("a failing hook must not prevent the remaining hooks")
	}
}

func TestServer_Addr(t *testing.T) {
	srv := New(http.NewServeMux(), 8080, time.Second, time.Second, time.Second, testutil.NewTestLogger())
	if srv.Addr() != ":8080" {
		t.Errorf("unexpected addr: %s", srv.Addr())
	}
}

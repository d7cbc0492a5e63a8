package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adtrust/escrow-bridge/internal/txcodec"
)

func newTestClient(handler http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewHTTPClient(srv.URL, 2*time.Second, nil), srv
}

func TestHTTPClientCheckpoint(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkpoint" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(CheckpointInfo{Checkpoint: 42, Epoch: 1})
	}))
	defer srv.Close()

	info, err := c.CurrentCheckpoint(context.Background())
	if err != nil {
		t.Fatalf("CurrentCheckpoint: %v", err)
	}
	if info.Checkpoint != 42 || info.Epoch != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestHTTPClientBroadcast(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transactions" {
			http.NotFound(w, r)
			return
		}
		var env txcodec.SignedEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"tx_id": "abc123"})
	}))
	defer srv.Close()

	id, err := c.Broadcast(context.Background(), txcodec.SignedEnvelope{})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if id != "abc123" {
		t.Errorf("tx id = %q", id)
	}
}

func TestHTTPClientErrorMapping(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		if _, err := c.Transaction(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("server failure", func(t *testing.T) {
		c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		if _, err := c.CurrentCheckpoint(context.Background()); !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // kill the endpoint before calling

		if _, err := c.CurrentCheckpoint(context.Background()); !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
		if _, err := c.Broadcast(context.Background(), txcodec.SignedEnvelope{}); !errors.Is(err, ErrUnavailable) {
			t.Errorf("broadcast err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("rejection is not unavailable", func(t *testing.T) {
		c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad signature", http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := c.Broadcast(context.Background(), txcodec.SignedEnvelope{})
		if err == nil || errors.Is(err, ErrUnavailable) {
			t.Errorf("rejection mapped wrong: %v", err)
		}
	})
}

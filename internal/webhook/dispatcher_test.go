package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aigoflow/proof-service/internal/models"
)

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com/hook"); err != nil {
		t.Fatal(err)
	}

	var vErr *models.ValidationError
	for _, raw := range []string{"http://example.com/hook", "ftp://x", "not a url", "https://"} {
		if err := ValidateURL(raw); !errors.As(err, &vErr) {
			t.Errorf("%q: expected validation error, got %v", raw, err)
		}
	}
}

func testReceipt() *models.Receipt {
	return &models.Receipt{
		ID:     "r1",
		Status: models.StatusVerified,
		Output: models.InferenceOutput{Label: "AUTHORIZED"},
	}
}

func TestDeliverySuccess(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.Receipt
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		got.Store(body.ID)
	}))
	defer srv.Close()

	d := NewDispatcher(3, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(srv.URL, testReceipt())

	deadline := time.After(2 * time.Second)
	for {
		if id, ok := got.Load().(string); ok && id == "r1" {
			return
		}
		select {
		case <-deadline:
			t.Fatal("delivery never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDeliveryRetriesThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(3, time.Millisecond)
	d.deliver(context.Background(), delivery{url: srv.URL, receipt: testReceipt()})

	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDeliveryStopsRetryingOnSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	d := NewDispatcher(3, time.Millisecond)
	d.deliver(context.Background(), delivery{url: srv.URL, receipt: testReceipt()})

	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSlowEndpointDoesNotDelayOthers(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer slow.Close()
	defer close(release)

	var fastDelivered atomic.Bool
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fastDelivered.Store(true)
	}))
	defer fast.Close()

	d := NewDispatcher(3, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// The stalled delivery is queued first; the fast one must still
	// complete while it hangs.
	d.Enqueue(slow.URL, testReceipt())
	d.Enqueue(fast.URL, testReceipt())

	deadline := time.After(2 * time.Second)
	for !fastDelivered.Load() {
		select {
		case <-deadline:
			t.Fatal("fast delivery stuck behind slow endpoint")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEnqueueNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, time.Millisecond)
	// No Run loop draining: fill past the buffer and ensure we return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			d.Enqueue("https://example.com", testReceipt())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked")
	}
}

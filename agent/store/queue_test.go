package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

func TestUpstashPendingQueueRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewUpstashPendingQueue(UpstashQueueConfig{Token: "token"})
	if err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestUpstashPendingQueueRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewUpstashPendingQueue(UpstashQueueConfig{URL: "https://example.upstash.io"})
	if err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestUpstashPendingQueueEnqueuePushesEncodedRef(t *testing.T) {
	t.Parallel()

	var gotCommand []any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("Authorization = %q, want bearer token", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	queue, err := NewUpstashPendingQueue(
		UpstashQueueConfig{
			URL:   server.URL,
			Token: "token",
		},
		WithQueueHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashPendingQueue() error = %v", err)
	}

	if err := queue.Enqueue(context.Background(), "8-912-345-67-89", 42); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if len(gotCommand) != 3 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "RPUSH" {
		t.Fatalf("command[0] = %v, want RPUSH", gotCommand[0])
	}
	if gotCommand[1] != defaultQueueKey {
		t.Fatalf("command[1] = %v, want %s", gotCommand[1], defaultQueueKey)
	}

	entry, ok := gotCommand[2].(string)
	if !ok {
		t.Fatalf("command[2] = %#v, want JSON string", gotCommand[2])
	}
	var ref contractx.PendingRef
	if err := json.Unmarshal([]byte(entry), &ref); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if ref.PhoneNumber != "89123456789" || ref.Timestamp != 42 {
		t.Fatalf("entry = %+v, want normalized phone and timestamp 42", ref)
	}
}

func TestUpstashPendingQueueEnqueueRejectsBadPhone(t *testing.T) {
	t.Parallel()

	queue, err := NewUpstashPendingQueue(UpstashQueueConfig{
		URL:   "https://example.upstash.io",
		Token: "token",
	})
	if err != nil {
		t.Fatalf("NewUpstashPendingQueue() error = %v", err)
	}

	if err := queue.Enqueue(context.Background(), "12345", 1); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Enqueue() error = %v, want ErrValidation", err)
	}
}

func TestUpstashPendingQueueDequeueRemovesAllMatches(t *testing.T) {
	t.Parallel()

	var gotCommand []any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprint(w, `{"result":1}`)
	}))
	t.Cleanup(server.Close)

	queue, err := NewUpstashPendingQueue(
		UpstashQueueConfig{
			URL:   server.URL,
			Token: "token",
		},
		WithQueueHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashPendingQueue() error = %v", err)
	}

	if err := queue.Dequeue(context.Background(), "89123456789", 42); err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}

	if len(gotCommand) != 4 {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
	if gotCommand[0] != "LREM" {
		t.Fatalf("command[0] = %v, want LREM", gotCommand[0])
	}
	// count 0 removes every copy of the entry.
	if count, ok := gotCommand[2].(float64); !ok || count != 0 {
		t.Fatalf("command[2] = %v, want 0", gotCommand[2])
	}
}

func TestUpstashPendingQueueListDecodesEntries(t *testing.T) {
	t.Parallel()

	entries := []string{
		`{"phone_number":"89123456789","timestamp":1}`,
		`{"phone_number":"89999999999","timestamp":2}`,
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal entries: %v", err)
	}

	var gotCommand []any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		fmt.Fprintf(w, `{"result":%s}`, payload)
	}))
	t.Cleanup(server.Close)

	queue, err := NewUpstashPendingQueue(
		UpstashQueueConfig{
			URL:   server.URL,
			Token: "token",
		},
		WithQueueHTTPClient(server.Client()),
		WithQueueKey("custom:pending"),
	)
	if err != nil {
		t.Fatalf("NewUpstashPendingQueue() error = %v", err)
	}

	refs, err := queue.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if gotCommand[0] != "LRANGE" {
		t.Fatalf("command[0] = %v, want LRANGE", gotCommand[0])
	}
	if gotCommand[1] != "custom:pending" {
		t.Fatalf("command[1] = %v, want custom key", gotCommand[1])
	}
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
	if refs[0].PhoneNumber != "89123456789" || refs[0].Timestamp != 1 {
		t.Fatalf("refs[0] = %+v", refs[0])
	}
	if refs[1].PhoneNumber != "89999999999" || refs[1].Timestamp != 2 {
		t.Fatalf("refs[1] = %+v", refs[1])
	}
}

func TestUpstashPendingQueueSurfacesRedisError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		fmt.Fprint(w, `{"error":"WRONGTYPE Operation against a key holding the wrong kind of value"}`)
	}))
	t.Cleanup(server.Close)

	queue, err := NewUpstashPendingQueue(
		UpstashQueueConfig{
			URL:   server.URL,
			Token: "token",
		},
		WithQueueHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewUpstashPendingQueue() error = %v", err)
	}

	if err := queue.Enqueue(context.Background(), "89123456789", 7); err == nil {
		t.Fatal("expected error surfaced from redis response")
	}
}

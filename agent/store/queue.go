package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const (
	defaultQueueKey      = "smartass:pending"
	maxResponseSizeBytes = 2 << 20
)

// QueueOption customizes UpstashPendingQueue.
type QueueOption func(*UpstashPendingQueue)

func WithQueueKey(key string) QueueOption {
	return func(q *UpstashPendingQueue) {
		trimmed := strings.TrimSpace(key)
		if trimmed != "" {
			q.key = trimmed
		}
	}
}

func WithQueueHTTPClient(client *http.Client) QueueOption {
	return func(q *UpstashPendingQueue) {
		if client != nil {
			q.httpClient = client
		}
	}
}

// UpstashPendingQueue keeps the FIFO of turns awaiting an operator response
// in Upstash Redis via its REST protocol. Entries are JSON-encoded
// contract.PendingRef values on a single list key.
type UpstashPendingQueue struct {
	baseURL    string
	token      string
	key        string
	httpClient *http.Client
}

type UpstashQueueConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashPendingQueue(cfg UpstashQueueConfig, opts ...QueueOption) (*UpstashPendingQueue, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	q := &UpstashPendingQueue{
		baseURL: baseURL,
		token:   token,
		key:     defaultQueueKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q, nil
}

func (q *UpstashPendingQueue) Enqueue(ctx context.Context, phoneNumber string, timestamp int64) error {
	entry, err := encodeRef(phoneNumber, timestamp)
	if err != nil {
		return err
	}
	_, err = q.exec(ctx, []any{"RPUSH", q.key, entry})
	return err
}

func (q *UpstashPendingQueue) Dequeue(ctx context.Context, phoneNumber string, timestamp int64) error {
	entry, err := encodeRef(phoneNumber, timestamp)
	if err != nil {
		return err
	}
	_, err = q.exec(ctx, []any{"LREM", q.key, 0, entry})
	return err
}

func (q *UpstashPendingQueue) List(ctx context.Context) ([]contractx.PendingRef, error) {
	resp, err := q.exec(ctx, []any{"LRANGE", q.key, 0, -1})
	if err != nil {
		return nil, err
	}

	var entries []string
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		return nil, fmt.Errorf("decode queue entries: %w", err)
	}

	refs := make([]contractx.PendingRef, 0, len(entries))
	for _, entry := range entries {
		var ref contractx.PendingRef
		if err := json.Unmarshal([]byte(entry), &ref); err != nil {
			return nil, fmt.Errorf("decode queue entry %q: %w", entry, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func encodeRef(phoneNumber string, timestamp int64) (string, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(contractx.PendingRef{
		PhoneNumber: phone,
		Timestamp:   timestamp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal queue entry: %w", err)
	}
	return string(raw), nil
}

func (q *UpstashPendingQueue) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

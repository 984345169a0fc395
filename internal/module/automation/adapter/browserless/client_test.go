package browserless_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/profile-scraper/internal/module/automation/adapter/browserless"
	"github.com/jinford/profile-scraper/internal/module/automation/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// sleepRecorder はバックオフ待機時間を記録するSleeper
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func newTestClient(t *testing.T, server *httptest.Server, maxAttempts int, recorder *sleepRecorder) *browserless.Client {
	t.Helper()
	return browserless.NewClient(browserless.Config{
		Host:           server.URL,
		Token:          "secret-token",
		Timeout:        5 * time.Second,
		MaxAttempts:    maxAttempts,
		Backoff:        time.Second,
		MaxConcurrency: 2,
	}, testLogger(), browserless.WithSleeper(recorder.sleep))
}

func decodePayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestClient_RetriesWithLinearBackoff(t *testing.T) {
	tests := []struct {
		name     string
		failures int
	}{
		{name: "リトライなしで成功", failures: 0},
		{name: "1回失敗後に成功", failures: 1},
		{name: "3回失敗後に成功", failures: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			var calls atomic.Int32
			statuses := []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusBadGateway}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1))
				if n <= tt.failures {
					w.WriteHeader(statuses[(n-1)%len(statuses)])
					_, _ = w.Write([]byte("busy"))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"data":"<html>ok</html>"}`))
			}))
			defer server.Close()

			recorder := &sleepRecorder{}
			client := newTestClient(t, server, tt.failures+1, recorder)

			// Execute
			html, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, "<html>ok</html>", html)
			assert.Equal(t, int32(tt.failures+1), calls.Load())
			require.Len(t, recorder.delays, tt.failures)
			for i, d := range recorder.delays {
				assert.Equal(t, time.Duration(i+1)*time.Second, d)
			}
			expected := time.Duration(tt.failures*(tt.failures+1)/2) * time.Second
			assert.Equal(t, expected, recorder.total())
		})
	}
}

func TestClient_NegotiatesRejectedField(t *testing.T) {
	// Setup
	var (
		mu       sync.Mutex
		payloads []map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := decodePayload(t, r)
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()

		if _, ok := payload["fullPage"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`"fullPage" is not allowed`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	// 試行回数1でも交渉による再送は行われる
	client := newTestClient(t, server, 1, recorder)

	// Execute
	image, err := client.Screenshot(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{
		FullPage: domain.Bool(true),
		Timeout:  30 * time.Second,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "iVBORw==", image)
	require.Len(t, payloads, 2)
	assert.Contains(t, payloads[0], "fullPage")
	assert.NotContains(t, payloads[1], "fullPage")
	assert.Equal(t, float64(30000), payloads[1]["timeout"])
	assert.Empty(t, recorder.delays)
}

func TestClient_NegotiationHappensOnce(t *testing.T) {
	// Setup
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`"timeout" is not allowed`))
	}))
	defer server.Close()

	client := newTestClient(t, server, 3, &sleepRecorder{})

	// Execute
	_, err := client.ExecuteScript(context.Background(), "https://instagram.com/alice", "return 1", 10*time.Second)

	// Assert
	require.Error(t, err)
	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, http.StatusBadRequest, opErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NonRetriableStatus(t *testing.T) {
	// Setup
	var calls atomic.Int32
	longBody := strings.Repeat("x", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(longBody))
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, server, 3, recorder)

	// Execute
	_, err := client.ExportPDF(context.Background(), "https://instagram.com/alice", 0)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)
	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "/pdf", opErr.Endpoint)
	assert.Equal(t, "https://instagram.com/alice", opErr.URL)
	assert.Equal(t, http.StatusNotFound, opErr.StatusCode)
	assert.Len(t, opErr.Body, 600)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, recorder.delays)
}

func TestClient_ExhaustsRetriableStatus(t *testing.T) {
	// Setup
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, server, 3, recorder)

	// Execute
	_, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})

	// Assert
	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, http.StatusGatewayTimeout, opErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, recorder.delays)
}

func TestClient_TransportErrorWrapsCause(t *testing.T) {
	// Setup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	recorder := &sleepRecorder{}
	client := newTestClient(t, server, 2, recorder)

	// Execute
	_, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})

	// Assert
	require.Error(t, err)
	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 0, opErr.StatusCode)
	assert.NotNil(t, opErr.Err)
	assert.Len(t, recorder.delays, 1)
	assert.Equal(t, 0, client.Limiter().Status().InFlight)
}

func TestClient_ExecuteScriptDecoding(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    string
	}{
		{name: "JSONエンベロープ", contentType: "application/json", body: `{"data":{"posts":[]}}`, expected: `{"posts":[]}`},
		{name: "エンベロープなしのJSON", contentType: "application/json", body: `{"posts":[1]}`, expected: `{"posts":[1]}`},
		{name: "テキスト結果", contentType: "text/plain", body: `not json`, expected: `"not json"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				payload := decodePayload(t, r)
				assert.Equal(t, "return 1", payload["code"])
				assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server, 1, &sleepRecorder{})

			// Execute
			raw, err := client.ExecuteScript(context.Background(), "https://instagram.com/alice", "return 1", 0)

			// Assert
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(raw))
		})
	}
}

func TestClient_CancelledContextStopsRetry(t *testing.T) {
	// Setup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := browserless.NewClient(browserless.Config{
		Host:        server.URL,
		MaxAttempts: 5,
		Backoff:     time.Second,
	}, testLogger(), browserless.WithSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	// Execute
	_, err := client.GetContent(ctx, "https://instagram.com/alice", domain.CaptureOptions{})

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_RequestsPerSecondSpacesCalls(t *testing.T) {
	// Setup
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	// 2 req/s、バースト2: 3回目は約500ms待たされる
	client := browserless.NewClient(browserless.Config{
		Host:              server.URL,
		Timeout:           5 * time.Second,
		MaxAttempts:       1,
		MaxConcurrency:    3,
		RequestsPerSecond: 2,
	}, testLogger())

	// Execute
	start := time.Now()
	for range 3 {
		_, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// Assert
	assert.Equal(t, int32(3), hits.Load())
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
}

func TestClient_RequestsPerSecondHonoursContext(t *testing.T) {
	// Setup
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client := browserless.NewClient(browserless.Config{
		Host:              server.URL,
		Timeout:           5 * time.Second,
		MaxAttempts:       1,
		RequestsPerSecond: 0.5,
	}, testLogger())
	_, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Execute
	start := time.Now()
	_, err = client.GetContent(ctx, "https://instagram.com/alice", domain.CaptureOptions{})

	// Assert
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 0, client.Limiter().Status().InFlight)
}

func TestClient_BackendTimeoutExtendsRequestDeadline(t *testing.T) {
	// Setup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := browserless.NewClient(browserless.Config{
		Host:        server.URL,
		Timeout:     100 * time.Millisecond,
		MaxAttempts: 1,
	}, testLogger())

	tests := []struct {
		name    string
		run     func() error
		wantErr bool
	}{
		{
			name: "スクリプトのタイムアウトがある場合はそれより長く待つ",
			run: func() error {
				_, err := client.ExecuteScript(context.Background(), "https://instagram.com/alice", "code", time.Second)
				return err
			},
		},
		{
			name: "タイムアウト指定がない場合はクライアントの既定値で打ち切る",
			run: func() error {
				_, err := client.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})
				return err
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Execute
			err := tt.run()

			// Assert
			if tt.wantErr {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClient_HealthCheck(t *testing.T) {
	// Setup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server, 1, &sleepRecorder{})

	// Execute & Assert
	assert.True(t, client.HealthCheck(context.Background()))
	assert.Equal(t, 0, client.Limiter().Status().InFlight)
}

func TestLimiter_SharedAcrossClients(t *testing.T) {
	// Setup
	limiter := browserless.NewLimiter(1)
	var (
		current atomic.Int32
		peak    atomic.Int32
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	cfg := browserless.Config{Host: server.URL, MaxAttempts: 1}
	clients := []*browserless.Client{
		browserless.NewClient(cfg, testLogger(), browserless.WithLimiter(limiter)),
		browserless.NewClient(cfg, testLogger(), browserless.WithLimiter(limiter)),
	}

	// Execute
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(c *browserless.Client) {
			defer wg.Done()
			_, err := c.GetContent(context.Background(), "https://instagram.com/alice", domain.CaptureOptions{})
			assert.NoError(t, err)
		}(clients[i%2])
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 0, limiter.Status().InFlight)
	assert.Equal(t, 1, limiter.Status().Size)
}

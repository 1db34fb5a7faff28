package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thunder/pkg/api/middleware"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/marmos91/thunder/pkg/plugin"
)

type pinger struct{ err error }

func (p pinger) Healthcheck(context.Context) error { return p.err }

type inlineExecutor struct {
	mu   sync.Mutex
	keys []string
}

func (e *inlineExecutor) Submit(ctx context.Context, key string, fn func(context.Context) error) error {
	e.mu.Lock()
	e.keys = append(e.keys, key)
	e.mu.Unlock()
	return fn(ctx)
}

func (e *inlineExecutor) QueueDepth() int { return 3 }

type sentMessage struct {
	chatID int64
	text   string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) SendMessage(_ context.Context, chatID int64, text string) (*messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{chatID, text})
	return &messaging.Message{MessageID: int64(100 + len(s.sent)), Chat: messaging.Chat{ID: chatID}}, nil
}

type fixture struct {
	handler  http.Handler
	executor *inlineExecutor
	sender   *recordingSender
	after    []*messaging.Message
}

func newFixture(t *testing.T, ready bool, storeErr error) *fixture {
	t.Helper()
	f := &fixture{executor: &inlineExecutor{}, sender: &recordingSender{}}
	b := Backend{
		Version:  "1.0.0",
		Started:  time.Now().Add(-time.Minute),
		Bot:      &messaging.BotContext{ID: 1, Username: "thunderbot"},
		Plugins:  plugin.LoadReport{Total: 2, Succeeded: 1, Failed: []string{"broken"}},
		Ready:    func() bool { return ready },
		Store:    pinger{err: storeErr},
		Commands: commandTable{f: f},
		Executor: f.executor,
		Sender:   f.sender,
	}
	f.handler = NewRouter(ServerConfig{WebhookSecret: "s3cret"}, b)
	return f
}

// commandTable answers /echo and /restart without the plugin loader.
type commandTable struct{ f *fixture }

func (c commandTable) Dispatch(_ context.Context, req *plugin.Request) (*plugin.Reply, error) {
	switch req.Command {
	case "echo":
		return &plugin.Reply{Text: "echo: " + req.Args}, nil
	case "restart":
		return &plugin.Reply{Text: "Restarting...", AfterSend: func(_ context.Context, sent *messaging.Message) error {
			c.f.after = append(c.f.after, sent)
			return nil
		}}, nil
	case "silent":
		return nil, nil
	case "broken":
		return nil, errors.New("handler failed")
	default:
		return nil, plugin.ErrUnknownCommand
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func update(text string) string {
	return fmt.Sprintf(`{"update_id":1,"message":{"message_id":5,"from":{"id":9,"is_bot":false,"first_name":"Ann"},"chat":{"id":9,"type":"private"},"date":1700000000,"text":%q}}`, text)
}

func TestHealthProbes(t *testing.T) {
	f := newFixture(t, true, nil)
	assert.Equal(t, http.StatusOK, f.do("GET", "/health/live", "").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/health/ready", "").Code)

	notReady := newFixture(t, false, nil)
	assert.Equal(t, http.StatusOK, notReady.do("GET", "/health/live", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, notReady.do("GET", "/health/ready", "").Code)

	storeDown := newFixture(t, true, errors.New("database is locked"))
	assert.Equal(t, http.StatusServiceUnavailable, storeDown.do("GET", "/health/ready", "").Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true, nil)
	w := f.do("GET", "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Version    string `json:"version"`
			Bot        string `json:"bot"`
			QueueDepth int    `json:"queue_depth"`
			Plugins    struct {
				Total     int      `json:"total"`
				Succeeded int      `json:"succeeded"`
				Failed    []string `json:"failed"`
			} `json:"plugins"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.0.0", resp.Data.Version)
	assert.Equal(t, "@thunderbot", resp.Data.Bot)
	assert.Equal(t, 3, resp.Data.QueueDepth)
	assert.Equal(t, 2, resp.Data.Plugins.Total)
	assert.Equal(t, []string{"broken"}, resp.Data.Plugins.Failed)
}

func TestWebhookSecret(t *testing.T) {
	f := newFixture(t, true, nil)

	assert.Equal(t, http.StatusNotFound, f.do("POST", "/webhook/wrong", update("/echo hi")).Code)

	req := httptest.NewRequest("POST", "/webhook/s3cret", strings.NewReader(update("/echo hi")))
	req.Header.Set(middleware.SecretTokenHeader, "other")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Empty(t, f.sender.sent)
}

func TestWebhookDispatch(t *testing.T) {
	f := newFixture(t, true, nil)

	w := f.do("POST", "/webhook/s3cret", update("/echo@thunderbot hello there"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []sentMessage{{9, "echo: hello there"}}, f.sender.sent)
	assert.Equal(t, []string{"9"}, f.executor.keys)
}

func TestWebhookAfterSend(t *testing.T) {
	f := newFixture(t, true, nil)

	require.Equal(t, http.StatusOK, f.do("POST", "/webhook/s3cret", update("/restart")).Code)
	require.Len(t, f.after, 1)
	assert.Equal(t, int64(101), f.after[0].MessageID)
}

func TestWebhookIgnoredUpdates(t *testing.T) {
	f := newFixture(t, true, nil)

	for _, body := range []string{
		update("just chatting"),
		update("/unknown"),
		update("/silent"),
		update("/broken"),
		update("/echo@otherbot hi"),
		`{"update_id":2}`,
	} {
		assert.Equal(t, http.StatusOK, f.do("POST", "/webhook/s3cret", body).Code, body)
	}
	assert.Empty(t, f.sender.sent)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/webhook/s3cret", "{not json").Code)
}

func TestWebhookDisabledWithoutSecret(t *testing.T) {
	h := NewRouter(ServerConfig{}, Backend{Commands: commandTable{}})
	req := httptest.NewRequest("POST", "/webhook/", strings.NewReader(update("/echo")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Reset()
	f := newFixture(t, true, nil)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/metrics", "").Code)

	metrics.InitRegistry()
	defer metrics.Reset()
	f = newFixture(t, true, nil)
	w := f.do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(ServerConfig{BindAddress: "127.0.0.1", Port: freePort(t)}, Backend{Ready: func() bool { return true }})
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/health/live")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))

	_, open := <-s.Err()
	assert.False(t, open)
}

func TestServerStartBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewServer(ServerConfig{BindAddress: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}, Backend{})
	assert.Error(t, s.Start(context.Background()))
}

func TestServerConfig(t *testing.T) {
	c := ServerConfig{PublicURL: "https://bot.example.com/", WebhookSecret: "abc"}
	c.ApplyDefaults()
	assert.Equal(t, "0.0.0.0:8080", c.Addr())
	assert.Equal(t, "https://bot.example.com/webhook/abc", c.WebhookURL())

	c.WebhookSecret = ""
	assert.Equal(t, "", c.WebhookURL())
}

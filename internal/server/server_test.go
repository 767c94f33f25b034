package server

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"textile-store/internal/config"
	"textile-store/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDB struct {
	status string
}

func (d stubDB) DB() *sql.DB { return nil }
func (d stubDB) Health(context.Context) map[string]string {
	return map[string]string{"status": d.status}
}
func (d stubDB) Close() error { return nil }

func newTestServer(t *testing.T, dbStatus string) *Server {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Port: "0", Env: "test"}}
	return NewServer(cfg, zap.NewNop(), Dependencies{
		DB:     stubDB{status: dbStatus},
		Broker: realtime.NewMemoryBroker(),
	})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		dbStatus string
		wantCode int
		want     string
	}{
		{"database up", "up", http.StatusOK, "ok"},
		{"database down", "down", http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.dbStatus)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["status"])
		})
	}
}

func TestShutdownEndsOpenEventStreams(t *testing.T) {
	srv := newTestServer(t, "up")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/realtime/fabrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-served, http.ErrServerClosed)

	// The stream is terminated rather than left hanging.
	_, err = bufio.NewReader(resp.Body).ReadString('\n')
	assert.Error(t, err)
}

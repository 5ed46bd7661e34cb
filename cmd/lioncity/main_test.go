package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiKapsDev/Lion-City/internal/client"
	"github.com/MiKapsDev/Lion-City/internal/clock"
	"github.com/MiKapsDev/Lion-City/internal/config"
	"github.com/MiKapsDev/Lion-City/internal/game"
	"github.com/MiKapsDev/Lion-City/internal/logging"
	"github.com/MiKapsDev/Lion-City/internal/metrics"
)

func newTestApp(t *testing.T, cfg *config.Config) (*app, *client.Client) {
	t.Helper()
	a, err := newApp(cfg, logging.Discard(), appOptions{
		clock:    clock.NewAt(time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)),
		metrics:  metrics.New(nil),
		gatherer: prometheus.NewRegistry(),
		game:     []game.Option{game.WithScheduler(game.NewManualScheduler())},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ts := httptest.NewServer(a.srv)
	t.Cleanup(ts.Close)
	return a, client.New(ts.URL)
}

func runCmd(t *testing.T, c *client.Client, line string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	fields := strings.Fields(line)
	err := run(fields[0], fields[1:], c, &out)
	return out.String(), err
}

func TestParseArgs(t *testing.T) {
	t.Setenv("LIONCITY_ADDR", "http://env:1")

	tests := []struct {
		raw      []string
		wantCmd  string
		wantArgs []string
		wantAddr string
	}{
		{nil, "", nil, "http://env:1"},
		{[]string{"balance"}, "balance", []string{}, "http://env:1"},
		{[]string{"--addr", "http://x:2", "earn", "5"}, "earn", []string{"5"}, "http://x:2"},
		{[]string{"serve", "--addr", "y"}, "serve", []string{"--addr", "y"}, "http://env:1"},
	}
	for _, tt := range tests {
		cmd, args, addr := parseArgs(tt.raw)
		assert.Equal(t, tt.wantCmd, cmd, "raw %v", tt.raw)
		if len(tt.wantArgs) == 0 {
			assert.Empty(t, args, "raw %v", tt.raw)
		} else {
			assert.Equal(t, tt.wantArgs, args, "raw %v", tt.raw)
		}
		assert.Equal(t, tt.wantAddr, addr, "raw %v", tt.raw)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	_, err := runCmd(t, client.New(""), "teleport")
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestRunVersion(t *testing.T) {
	out, err := runCmd(t, client.New(""), "version")
	require.NoError(t, err)
	assert.Equal(t, "lioncity version dev\n", out)
}

func TestClientCommandsAgainstServer(t *testing.T) {
	_, c := newTestApp(t, config.Default())

	out, err := runCmd(t, c, "earn 40 Welcome bonus")
	require.NoError(t, err)
	assert.Contains(t, out, `"reason": "Welcome bonus"`)

	out, err = runCmd(t, c, "balance")
	require.NoError(t, err)
	assert.Equal(t, "40 points\n", out)

	out, err = runCmd(t, c, "spend --key 10 Kiosk")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "LC-`)

	out, err = runCmd(t, c, "redeem reward coffee")
	require.NoError(t, err)
	assert.Contains(t, out, `"success": true`)

	out, err = runCmd(t, c, "scan PROMO 5")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "points"`)

	out, err = runCmd(t, c, "balance")
	require.NoError(t, err)
	assert.Equal(t, "20 points\n", out)

	out, err = runCmd(t, c, "history")
	require.NoError(t, err)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	assert.Len(t, txs, 4)
}

func TestRejectionPrintsBody(t *testing.T) {
	_, c := newTestApp(t, config.Default())

	out, err := runCmd(t, c, "spend 99")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, out, `"insufficient": true`)
}

func TestEarnValidatesArguments(t *testing.T) {
	_, c := newTestApp(t, config.Default())

	_, err := runCmd(t, c, "earn")
	assert.ErrorContains(t, err, "usage")
	_, err = runCmd(t, c, "earn ten")
	assert.ErrorContains(t, err, "invalid amount")

	out, err := runCmd(t, c, "earn --source scan 5")
	require.NoError(t, err)
	assert.Contains(t, out, `"reason": "QR-Scan"`)
}

func TestResetAndState(t *testing.T) {
	a, c := newTestApp(t, config.Default())

	_, err := runCmd(t, c, "earn 70")
	require.NoError(t, err)
	_, err = runCmd(t, c, "scan game:snake;points:10")
	require.NoError(t, err)

	out, err := runCmd(t, c, "state")
	require.NoError(t, err)
	assert.Contains(t, out, `"balance": "70"`)

	_, err = runCmd(t, c, "reset")
	require.NoError(t, err)
	assert.Equal(t, 0, a.ledger.Balance())

	_, err = a.games.View()
	assert.ErrorIs(t, err, game.ErrNoSession, "reset closes the game overlay")
}

func TestSeedAndAdvance(t *testing.T) {
	a, c := newTestApp(t, config.Default())

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"balance":"120"}`), 0o644))
	_, err := runCmd(t, c, "seed "+path)
	require.NoError(t, err)
	assert.Equal(t, 120, a.ledger.Balance())

	out, err := runCmd(t, c, "advance 24h")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-06-15T10:30:00Z")

	_, err = runCmd(t, c, "advance soon")
	assert.ErrorContains(t, err, "invalid duration")
}

func TestNewAppPersistsWithSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "lioncity.db")

	a, c := newTestApp(t, cfg)
	_, err := runCmd(t, c, "earn 33")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := newApp(cfg, logging.Discard(), appOptions{metrics: metrics.New(nil), gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 33, b.ledger.Balance())
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "leveldb"
	_, err := newApp(cfg, logging.Discard(), appOptions{metrics: metrics.New(nil)})
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Timezone = "Mars/Olympus"
	_, err = newApp(cfg, logging.Discard(), appOptions{metrics: metrics.New(nil)})
	assert.Error(t, err)
}

func TestNewAppWithoutWebhookQueuesNothing(t *testing.T) {
	a, c := newTestApp(t, config.Default())

	for range 20 {
		_, err := runCmd(t, c, "earn 5")
		require.NoError(t, err)
	}
	_, err := runCmd(t, c, "spend 10")
	require.NoError(t, err)

	assert.Empty(t, a.dispatcher.QueuedEvents())
}

func TestNewAppForwardsEventsToWebhook(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt struct {
			Type string `json:"type"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &evt)
		mu.Lock()
		types = append(types, evt.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	cfg := config.Default()
	cfg.Webhook.URL = receiver.URL
	cfg.Webhook.Secret = "s3cret"
	a, c := newTestApp(t, cfg)

	_, err := runCmd(t, c, "earn 5")
	require.NoError(t, err)
	a.dispatcher.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, types, "balance-changed")
	assert.Empty(t, a.dispatcher.QueuedEvents())
}

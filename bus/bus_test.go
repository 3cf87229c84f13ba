package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"climate-monitor/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []models.Alert
	err error
}

func (r *recorder) Publish(_ context.Context, a models.Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	broken := &recorder{err: errors.New("offline")}
	ok := &recorder{}
	f := NewFanout(Sink{Name: "broken", Publisher: broken})
	f.Add("ok", ok)

	alert := models.NewHighAlert(models.MetricHumidity, 90, 80)
	err := f.Publish(context.Background(), alert)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: offline")
	assert.Equal(t, []models.Alert{alert}, broken.got)
	assert.Equal(t, []models.Alert{alert}, ok.got)
	assert.Equal(t, []string{"broken", "ok"}, f.Names())
}

func TestFanoutNoSinks(t *testing.T) {
	require.NoError(t, NewFanout().Publish(context.Background(), models.Alert{}))
}

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcastsAlertEvents(t *testing.T) {
	hub, url := newTestHub(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	alert := models.NewLowAlert(models.MetricTemperature, 15, 18)
	require.NoError(t, hub.Publish(context.Background(), alert))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, EventAlert, ev.Event)
		assert.Equal(t, alert, ev.Data)
	}
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), models.Alert{}))
}

func TestHubClose(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeris/internal/session"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    *Message
		wantErr bool
	}{
		{line: "ALL:evt:bluetooth:bluez_sink.AA_BB.a2dp_sink:aeris", want: &Message{
			To: "ALL", Verb: "EVT", Noun: "BLUETOOTH", Args: []string{"bluez_sink.AA_BB.a2dp_sink"}, From: "aeris",
		}},
		{line: "aeris:CMD:TRIGGER:hub\n", want: &Message{
			To: "aeris", Verb: "CMD", Noun: "TRIGGER", Args: []string{}, From: "hub",
		}},
		{line: "0A:OK:PING:1F", want: &Message{To: "0A", Verb: "OK", Noun: "PING", Args: []string{}, From: "1F"}},
		{line: "", wantErr: true},
		{line: "ALL:EVT:QUERY", wantErr: true},
		{line: "ALL:EVT:QUERY:salle de bain:aeris", wantErr: true},
		{line: "ALL:EVT:QU/ERY:x:aeris", wantErr: true},
		{line: "ALL:EVT:QUERY:x:ae ris", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.To, got.To)
			assert.Equal(t, tt.want.Verb, got.Verb)
			assert.Equal(t, tt.want.Noun, got.Noun)
			assert.ElementsMatch(t, tt.want.Args, got.Args)
			assert.Equal(t, tt.want.From, got.From)
		})
	}
}

func TestTurnMessage(t *testing.T) {
	msg := TurnMessage(session.Turn{Command: "bluetooth", Device: "bluez_sink.AA_BB.a2dp_sink"})
	msg.From = "aeris"
	assert.Equal(t, "ALL:EVT:BLUETOOTH:bluez_sink.AA_BB.a2dp_sink:aeris", msg.String())

	msg = TurnMessage(session.Turn{Command: "query", Device: "alsa output:1", Err: errors.New("boom")})
	msg.From = "aeris"
	assert.Equal(t, "ALL:ERR:QUERY:alsa_output_1:aeris", msg.String())

	_, err := Parse(msg.String())
	require.NoError(t, err)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "none", Token(""))
	assert.Equal(t, "none", Token(":::"))
	assert.Equal(t, "a_b", Token(" a b "))
}

type fakeHub struct {
	srv  *httptest.Server
	got  chan string
	conn chan *ws.Conn
}

func newFakeHub(t *testing.T) *fakeHub {
	h := &fakeHub{got: make(chan string, 8), conn: make(chan *ws.Conn, 1)}
	up := ws.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.conn <- c
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			h.got <- string(raw)
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *fakeHub) url() string { return "ws" + strings.TrimPrefix(h.srv.URL, "http") }

func TestNotifierRoundTrip(t *testing.T) {
	h := newFakeHub(t)
	inbound := make(chan *Message, 1)

	n := New(Config{URL: h.url(), Shard: "aeris", Reconn: 50 * time.Millisecond, OnMessage: func(m *Message) {
		inbound <- m
	}})

	// offline: dropped without error
	require.NoError(t, n.Observe(context.Background(), session.Turn{Command: "query", Device: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, n.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, n.Observe(ctx, session.Turn{Command: "exit", Device: "alsa_output"}))
	select {
	case line := <-h.got:
		assert.Equal(t, "ALL:EVT:EXIT:alsa_output:aeris", line)
	case <-time.After(2 * time.Second):
		t.Fatal("hub received nothing")
	}

	server := <-h.conn
	require.NoError(t, server.WriteMessage(ws.TextMessage, []byte("kitchen:CMD:TRIGGER:hub")))
	require.NoError(t, server.WriteMessage(ws.TextMessage, []byte("aeris:CMD:TRIGGER:hub")))
	select {
	case m := <-inbound:
		assert.Equal(t, "TRIGGER", m.Noun)
		assert.Equal(t, "hub", m.From)
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
	}
	assert.Empty(t, inbound)
}

func TestNotifierReconnects(t *testing.T) {
	h := newFakeHub(t)
	n := New(Config{URL: h.url(), Reconn: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	first := <-h.conn
	require.Eventually(t, n.Connected, 2*time.Second, 10*time.Millisecond)
	first.Close()

	select {
	case <-h.conn:
	case <-time.After(2 * time.Second):
		t.Fatal("did not reconnect")
	}
	require.Eventually(t, n.Connected, 2*time.Second, 10*time.Millisecond)
}

package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecollab/internal/dto"
	"codecollab/internal/pkg/logger"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// relayStub records every envelope a client writes and can push frames back.
type relayStub struct {
	mu       sync.Mutex
	received []dto.Envelope
	queries  []map[string]string
	conns    []*websocket.Conn
}

func (s *relayStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, map[string]string{
			"projectId": r.URL.Query().Get("projectId"),
			"userId":    r.URL.Query().Get("userId"),
			"token":     r.URL.Query().Get("token"),
		})
		s.mu.Unlock()

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			var env dto.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, env)
			s.mu.Unlock()
		}
	}
}

func (s *relayStub) envelopes() []dto.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.Envelope(nil), s.received...)
}

func (s *relayStub) lastQuery() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

func (s *relayStub) push(t *testing.T, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	require.NoError(t, conn.WriteJSON(dto.Envelope{Event: event, Data: data}))
}

func (s *relayStub) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

func newTestChannel(t *testing.T, stub *relayStub, opts Options) (*WebsocketChannel, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	opts.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if opts.AuthToken == "" {
		opts.AuthToken = "test-token"
	}
	opts.ProjectID = "proj-1"
	opts.UserID = "alice"
	return NewWebsocketChannel(opts, logger.NewNopLogger()), srv
}

func waitForEnvelopes(t *testing.T, stub *relayStub, n int) []dto.Envelope {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(stub.envelopes()) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return stub.envelopes()
}

func TestConnectSendsHandshakeAndJoin(t *testing.T) {
	stub := &relayStub{}
	ch, _ := newTestChannel(t, stub, Options{})

	require.NoError(t, ch.Connect())
	defer ch.Close()

	q := stub.lastQuery()
	assert.Equal(t, "proj-1", q["projectId"])
	assert.Equal(t, "alice", q["userId"])
	assert.Equal(t, "test-token", q["token"])

	envs := waitForEnvelopes(t, stub, 1)
	assert.Equal(t, dto.EventJoinProject, envs[0].Event)

	var room dto.RoomPayload
	require.NoError(t, json.Unmarshal(envs[0].Data, &room))
	assert.Equal(t, "proj-1", room.ProjectID)
	assert.Equal(t, "alice", room.UserID)
	assert.True(t, ch.Connected())
}

func TestConnectWithoutToken(t *testing.T) {
	ch := NewWebsocketChannel(Options{Endpoint: "ws://unreachable/ws"}, logger.NewNopLogger())
	assert.ErrorIs(t, ch.Connect(), ErrMissingToken)
}

func TestSendWrapsEnvelope(t *testing.T) {
	stub := &relayStub{}
	ch, _ := newTestChannel(t, stub, Options{})
	require.NoError(t, ch.Connect())
	defer ch.Close()

	payload := dto.MessagePayload{ID: "m1", ProjectID: "proj-1", SenderID: "alice", Message: "hi"}
	require.NoError(t, ch.Send(dto.EventProjectMessage, payload))

	envs := waitForEnvelopes(t, stub, 2)
	assert.Equal(t, dto.EventProjectMessage, envs[1].Event)

	var got dto.MessagePayload
	require.NoError(t, json.Unmarshal(envs[1].Data, &got))
	assert.Equal(t, "hi", got.Message)
}

func TestSendWhileDisconnected(t *testing.T) {
	ch := NewWebsocketChannel(Options{Endpoint: "ws://unreachable/ws", AuthToken: "t"}, logger.NewNopLogger())
	err := ch.Send(dto.EventProjectMessage, dto.MessagePayload{ID: "m1"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestInboundDispatch(t *testing.T) {
	stub := &relayStub{}
	ch, _ := newTestChannel(t, stub, Options{})

	frames := make(chan json.RawMessage, 1)
	ch.On(dto.EventProjectMessage, func(data json.RawMessage) {
		frames <- data
	})
	require.NoError(t, ch.Connect())
	defer ch.Close()

	waitForEnvelopes(t, stub, 1)
	stub.push(t, dto.EventProjectMessage, dto.MessagePayload{ID: "m1", ProjectID: "proj-1", SenderID: "bob", Message: "hello"})

	select {
	case data := <-frames:
		var p dto.MessagePayload
		require.NoError(t, json.Unmarshal(data, &p))
		assert.Equal(t, "hello", p.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound event never dispatched")
	}
}

func TestCloseAnnouncesLeave(t *testing.T) {
	stub := &relayStub{}
	ch, _ := newTestChannel(t, stub, Options{})
	require.NoError(t, ch.Connect())

	require.NoError(t, ch.Close())
	assert.False(t, ch.Connected())

	envs := waitForEnvelopes(t, stub, 2)
	assert.Equal(t, dto.EventLeaveProject, envs[len(envs)-1].Event)
}

func TestReconnectRejoinsRoom(t *testing.T) {
	stub := &relayStub{}
	ch, _ := newTestChannel(t, stub, Options{
		ReconnectAttempts: 3,
		ReconnectDelay:    20 * time.Millisecond,
	})
	require.NoError(t, ch.Connect())
	defer ch.Close()

	waitForEnvelopes(t, stub, 1)
	stub.dropAll()

	// The channel must come back on its own and re-announce the session.
	require.Eventually(t, func() bool {
		envs := stub.envelopes()
		return len(envs) >= 2 && envs[len(envs)-1].Event == dto.EventJoinProject
	}, 3*time.Second, 20*time.Millisecond)
	assert.True(t, ch.Connected())
}

package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/atomhudson/allrentr-chat/internal/event"
)

// relayStub is a minimal stand-in for the relay: it upgrades, confirms
// the handshake, and records every frame the client sends.
type relayStub struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader
	userId   string

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames chan []byte
	dials  chan struct{}
}

func newRelayStub(t *testing.T, userId string) *relayStub {
	t.Helper()

	rs := &relayStub{
		t:      t,
		userId: userId,
		frames: make(chan []byte, 64),
		dials:  make(chan struct{}, 8),
	}
	rs.srv = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(func() {
		rs.dropAll()
		rs.srv.Close()
	})
	return rs
}

func (rs *relayStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn.WriteMessage(websocket.TextMessage, event.Marshal(event.NewConnected(rs.userId)))

	rs.mu.Lock()
	rs.conns = append(rs.conns, conn)
	rs.mu.Unlock()
	rs.dials <- struct{}{}

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			rs.frames <- data
		}
	}()
}

func (rs *relayStub) url() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

// push sends a server event over the most recent connection.
func (rs *relayStub) push(ev any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.conns) == 0 {
		rs.t.Fatal("push with no live connection")
	}
	conn := rs.conns[len(rs.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, event.Marshal(ev)); err != nil {
		rs.t.Fatalf("push failed: %v", err)
	}
}

func (rs *relayStub) dropAll() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, conn := range rs.conns {
		conn.Close()
	}
	rs.conns = nil
}

func waitDial(t *testing.T, rs *relayStub) {
	t.Helper()
	select {
	case <-rs.dials:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
	}
}

func waitClientEvent(t *testing.T, rs *relayStub) event.ClientEvent {
	t.Helper()
	select {
	case data := <-rs.frames:
		ev, err := event.ParseClient(data)
		if err != nil {
			t.Fatalf("client sent unparseable frame: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a client frame")
		return nil
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectAnnouncesPresence(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	c := New(rs.url(), "tok", WithClock(clock.NewMock()))
	defer c.Close()

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	waitDial(t, rs)

	if _, ok := waitClientEvent(t, rs).(*event.UserOnline); !ok {
		t.Fatal("expected user_online right after connecting")
	}

	eventually(t, func() bool { return c.State() == StateConnected }, "client never reached connected state")
	eventually(t, func() bool { return c.UserID() == "leaser" }, "client never learned its identity")
}

func TestReconnectsAfterFixedDelay(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	mock := clock.NewMock()
	c := New(rs.url(), "tok", WithClock(mock))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs) // user_online

	rs.dropAll()
	eventually(t, func() bool { return c.State() == StateDisconnected }, "client never noticed the drop")

	// Nothing happens before the delay elapses.
	mock.Add(reconnectDelay - time.Second)
	select {
	case <-rs.dials:
		t.Fatal("client reconnected before the delay elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	mock.Add(time.Second)
	waitDial(t, rs)

	// Presence is re-announced on every reconnect.
	if _, ok := waitClientEvent(t, rs).(*event.UserOnline); !ok {
		t.Fatal("expected user_online after reconnect")
	}
	eventually(t, func() bool { return c.State() == StateConnected }, "client never recovered")
}

func TestHeartbeatReassertsPresence(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	mock := clock.NewMock()
	c := New(rs.url(), "tok", WithClock(mock))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs) // user_online on connect

	// The ticker is registered on the dial goroutine; retry the advance
	// until it has been picked up.
	var got event.ClientEvent
	for i := 0; i < 40 && got == nil; i++ {
		mock.Add(heartbeatInterval)
		select {
		case data := <-rs.frames:
			ev, err := event.ParseClient(data)
			if err != nil {
				t.Fatalf("client sent unparseable frame: %v", err)
			}
			got = ev
		case <-time.After(50 * time.Millisecond):
		}
	}
	if _, ok := got.(*event.UserOnline); !ok {
		t.Fatalf("expected user_online on heartbeat, got %#v", got)
	}

	// Every interval re-asserts, not just the first.
	mock.Add(heartbeatInterval)
	if _, ok := waitClientEvent(t, rs).(*event.UserOnline); !ok {
		t.Fatal("expected user_online on every heartbeat tick")
	}
}

func TestCloseStopsReconnecting(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	mock := clock.NewMock()
	c := New(rs.url(), "tok", WithClock(mock))

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	mock.Add(10 * reconnectDelay)
	select {
	case <-rs.dials:
		t.Fatal("closed client must not reconnect")
	case <-time.After(50 * time.Millisecond):
	}

	if err := c.Connect(); err != ErrClosed {
		t.Errorf("expected ErrClosed from Connect after Close, got %v", err)
	}
}

func TestMessageCacheDedupesAndSorts(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	c := New(rs.url(), "tok", WithClock(clock.NewMock()))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	second := event.MessagePayload{ID: "m2", ConversationID: "conv-1", SenderID: "owner", Content: "second", MessageType: "text", CreatedAt: base.Add(time.Minute)}
	first := event.MessagePayload{ID: "m1", ConversationID: "conv-1", SenderID: "owner", Content: "first", MessageType: "text", CreatedAt: base}

	// Out of order, with a replayed duplicate.
	rs.push(event.NewNewMessage(second))
	rs.push(event.NewNewMessage(first))
	rs.push(event.NewNewMessage(first))

	eventually(t, func() bool { return len(c.Messages("conv-1")) == 2 }, "cache never settled at 2 messages")

	msgs := c.Messages("conv-1")
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("expected creation order m1,m2, got %s,%s", msgs[0].ID, msgs[1].ID)
	}
}

func TestReadAndDeleteUpdateCache(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	c := New(rs.url(), "tok", WithClock(clock.NewMock()))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	msg := event.MessagePayload{ID: "m1", ConversationID: "conv-1", SenderID: "leaser", Content: "hi", MessageType: "text", CreatedAt: time.Now().UTC()}
	rs.push(event.NewMessageSent(msg))
	eventually(t, func() bool { return len(c.Messages("conv-1")) == 1 }, "message never cached")

	readAt := time.Now().UTC()
	rs.push(event.NewMessageRead("conv-1", "m1", "owner", readAt))
	eventually(t, func() bool {
		cached := c.Messages("conv-1")
		return len(cached) == 1 && cached[0].ReadAt != nil
	}, "read receipt never applied")

	rs.push(event.NewMessageDeleted("conv-1", "m1"))
	eventually(t, func() bool { return len(c.Messages("conv-1")) == 0 }, "deleted message never removed")
}

func TestNotificationGating(t *testing.T) {
	rs := newRelayStub(t, "leaser")

	var mu sync.Mutex
	var notified []string
	c := New(rs.url(), "tok",
		WithClock(clock.NewMock()),
		WithNotificationHandler(func(msg event.MessagePayload) {
			mu.Lock()
			notified = append(notified, msg.ID)
			mu.Unlock()
		}),
	)
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)
	eventually(t, func() bool { return c.UserID() == "leaser" }, "identity never confirmed")

	c.SetActiveConversation("conv-open")

	now := time.Now().UTC()
	// own message: no notification
	rs.push(event.NewNewMessage(event.MessagePayload{ID: "own", ConversationID: "conv-other", SenderID: "leaser", CreatedAt: now}))
	// counterpart message in the open conversation: no notification
	rs.push(event.NewNewMessage(event.MessagePayload{ID: "open", ConversationID: "conv-open", SenderID: "owner", CreatedAt: now}))
	// counterpart message elsewhere: notify
	rs.push(event.NewNewMessage(event.MessagePayload{ID: "background", ConversationID: "conv-other", SenderID: "owner", CreatedAt: now}))

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(notified) == 1
	}, "expected exactly one notification")

	mu.Lock()
	defer mu.Unlock()
	if notified[0] != "background" {
		t.Errorf("expected notification for background message, got %v", notified)
	}
}

func TestTypingDebounce(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	mock := clock.NewMock()
	c := New(rs.url(), "tok", WithClock(mock))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	if err := c.Typing("conv-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := waitClientEvent(t, rs).(*event.Typing); !ok {
		t.Fatal("expected a typing frame")
	}

	// Further keystrokes only extend the idle window.
	c.Typing("conv-1")
	c.Typing("conv-1")
	select {
	case data := <-rs.frames:
		t.Fatalf("repeated Typing must not resend, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	mock.Add(typingTimeout)
	if _, ok := waitClientEvent(t, rs).(*event.StopTyping); !ok {
		t.Fatal("expected automatic stop_typing after idle timeout")
	}
}

func TestStopTypingCancelsTimer(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	mock := clock.NewMock()
	c := New(rs.url(), "tok", WithClock(mock))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	c.Typing("conv-1")
	waitClientEvent(t, rs) // typing

	if err := c.StopTyping("conv-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := waitClientEvent(t, rs).(*event.StopTyping); !ok {
		t.Fatal("expected explicit stop_typing frame")
	}

	// The idle timer is gone: advancing must not produce a second one.
	mock.Add(2 * typingTimeout)
	select {
	case data := <-rs.frames:
		t.Fatalf("expected no further frames, got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendHelpersRequireConnection(t *testing.T) {
	c := New("ws://localhost:1", "tok", WithClock(clock.NewMock()))
	defer c.Close()

	if err := c.SendMessage("conv-1", "hi"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := c.JoinConversation("conv-1"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendHelpersEmitTypedFrames(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	c := New(rs.url(), "tok", WithClock(clock.NewMock()))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	c.JoinConversation("conv-1")
	join, ok := waitClientEvent(t, rs).(*event.JoinConversation)
	if !ok || join.ConversationID != "conv-1" {
		t.Fatalf("expected join_conversation for conv-1, got %#v", join)
	}

	c.SendMessage("conv-1", "hello there")
	send, ok := waitClientEvent(t, rs).(*event.SendMessage)
	if !ok || send.Content != "hello there" || send.MessageType != event.MessageTypeText {
		t.Fatalf("unexpected send_message frame: %#v", send)
	}

	c.MarkRead("conv-1", "m1")
	read, ok := waitClientEvent(t, rs).(*event.MarkRead)
	if !ok || read.MessageID != "m1" {
		t.Fatalf("unexpected mark_read frame: %#v", read)
	}

	c.DeleteMessage("conv-1", "m1")
	del, ok := waitClientEvent(t, rs).(*event.DeleteMessage)
	if !ok || del.MessageID != "m1" {
		t.Fatalf("unexpected delete_message frame: %#v", del)
	}

	c.LeaveConversation("conv-1")
	if _, ok := waitClientEvent(t, rs).(*event.LeaveConversation); !ok {
		t.Fatal("expected leave_conversation frame")
	}
}

func TestUnknownServerEventsAreIgnored(t *testing.T) {
	rs := newRelayStub(t, "leaser")
	c := New(rs.url(), "tok", WithClock(clock.NewMock()))
	defer c.Close()

	c.Connect()
	waitDial(t, rs)
	waitClientEvent(t, rs)

	rs.mu.Lock()
	conn := rs.conns[len(rs.conns)-1]
	rs.mu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"call_offer","sdp":"x"}`))

	// Connection survives and later events are still handled.
	msg := event.MessagePayload{ID: "m1", ConversationID: "conv-1", SenderID: "owner", Content: "hi", MessageType: "text", CreatedAt: time.Now().UTC()}
	rs.push(event.NewNewMessage(msg))
	eventually(t, func() bool { return len(c.Messages("conv-1")) == 1 }, "client stopped handling events after an unknown type")

	if c.State() != StateConnected {
		t.Error("unknown event must not drop the connection")
	}
}

package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stompFrame is a frame parsed by the test broker.
type stompFrame struct {
	command string
	headers map[string]string
	body    string
}

// stompBroker is a minimal STOMP 1.2 broker over WebSocket.
type stompBroker struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	frames  []stompFrame
	subs    map[string]string // destination -> subscription id
	conn    *websocket.Conn
	cookies []*http.Cookie
	nextID  int
	writeMu sync.Mutex
}

func newStompBroker(t *testing.T) *stompBroker {
	b := &stompBroker{t: t, subs: make(map[string]string)}

	upgrader := websocket.Upgrader{
		CheckOrigin:  func(r *http.Request) bool { return true },
		Subprotocols: []string{"v12.stomp"},
	}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		b.mu.Lock()
		b.conn = conn
		b.cookies = r.Cookies()
		b.mu.Unlock()

		b.serve(conn)
	}))
	t.Cleanup(b.server.Close)

	return b
}

func (b *stompBroker) serve(conn *websocket.Conn) {
	var pending string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		pending += string(data)

		for {
			idx := strings.IndexByte(pending, 0)
			if idx < 0 {
				break
			}
			raw := strings.TrimLeft(pending[:idx], "\r\n")
			pending = pending[idx+1:]
			if raw == "" {
				continue
			}
			b.handle(conn, parseStompFrame(raw))
		}
	}
}

func parseStompFrame(raw string) stompFrame {
	head, body, _ := strings.Cut(raw, "\n\n")
	lines := strings.Split(head, "\n")
	f := stompFrame{command: strings.TrimSpace(lines[0]), headers: make(map[string]string), body: body}
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if ok {
			if _, exists := f.headers[k]; !exists {
				f.headers[k] = v
			}
		}
	}
	return f
}

func (b *stompBroker) handle(conn *websocket.Conn, f stompFrame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	if f.command == "SUBSCRIBE" {
		b.subs[f.headers["destination"]] = f.headers["id"]
	}
	b.mu.Unlock()

	switch f.command {
	case "CONNECT", "STOMP":
		b.write(conn, "CONNECTED\nversion:1.2\nheart-beat:0,0\n\n\x00")
	}

	if receipt, ok := f.headers["receipt"]; ok {
		b.write(conn, "RECEIPT\nreceipt-id:"+receipt+"\n\n\x00")
	}
}

func (b *stompBroker) write(conn *websocket.Conn, frame string) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (b *stompBroker) subscribed(destination string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[destination]
	return ok
}

// publish sends a MESSAGE frame to the subscriber of destination.
func (b *stompBroker) publish(destination, body string) {
	b.mu.Lock()
	subID := b.subs[destination]
	conn := b.conn
	b.nextID++
	msgID := b.nextID
	b.mu.Unlock()

	frame := fmt.Sprintf("MESSAGE\ndestination:%s\nsubscription:%s\nmessage-id:%d\ncontent-type:application/json\ncontent-length:%d\n\n%s\x00",
		destination, subID, msgID, len(body), body)
	b.write(conn, frame)
}

func (b *stompBroker) received(command string) []stompFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []stompFrame
	for _, f := range b.frames {
		if f.command == command {
			out = append(out, f)
		}
	}
	return out
}

func (b *stompBroker) drop() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	conn.Close()
}

func (b *stompBroker) clientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = b.server.URL + "/ws"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

func TestClient_RoundTrip(t *testing.T) {
	broker := newStompBroker(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	serverURL, _ := url.Parse(broker.server.URL)
	jar.SetCookies(serverURL, []*http.Cookie{{Name: "accessToken", Value: "tok", Path: "/"}})

	cfg := broker.clientConfig()
	cfg.Jar = jar

	client := NewClient(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	assert.True(t, client.IsConnected())

	broker.mu.Lock()
	cookies := broker.cookies
	broker.mu.Unlock()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)

	connects := broker.received("CONNECT")
	if len(connects) == 0 {
		connects = broker.received("STOMP")
	}
	require.Len(t, connects, 1)
	assert.Equal(t, "4000,4000", connects[0].headers["heart-beat"])

	sub, err := client.Subscribe("/sub/auction/1")
	require.NoError(t, err)
	assert.Equal(t, "/sub/auction/1", sub.Destination())
	require.Eventually(t, func() bool { return broker.subscribed("/sub/auction/1") }, 2*time.Second, 10*time.Millisecond)

	broker.publish("/sub/auction/1", `{"currentBid":12000,"nickname":"alice"}`)

	select {
	case f := <-sub.Frames():
		require.NoError(t, f.Err)
		assert.Equal(t, "/sub/auction/1", f.Destination)
		assert.JSONEq(t, `{"currentBid":12000,"nickname":"alice"}`, string(f.Body))
		assert.False(t, f.ReceivedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for MESSAGE")
	}

	require.NoError(t, client.Send("/app/auction/bid", []byte(`{"auctionId":"1","amount":13000}`)))
	require.Eventually(t, func() bool { return len(broker.received("SEND")) == 1 }, 2*time.Second, 10*time.Millisecond)

	send := broker.received("SEND")[0]
	assert.Equal(t, "/app/auction/bid", send.headers["destination"])
	assert.Equal(t, "application/json", send.headers["content-type"])
	assert.JSONEq(t, `{"auctionId":"1","amount":13000}`, send.body)

	require.NoError(t, sub.Unsubscribe())
	assert.Len(t, broker.received("UNSUBSCRIBE"), 1)

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	require.Eventually(t, func() bool { return len(broker.received("DISCONNECT")) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Close is idempotent.
	assert.NoError(t, client.Close())
}

func TestClient_ReportsConnectionLoss(t *testing.T) {
	broker := newStompBroker(t)

	client := NewClient(broker.clientConfig(), nil)
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	broker.drop()

	select {
	case err := <-client.Errors():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected connection loss to be reported")
	}
	assert.False(t, client.IsConnected())

	_, err := client.Subscribe("/sub/auction/1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, client.Send("/app/auction/bid", []byte(`{}`)), ErrNotConnected)
}

func TestClient_HandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := DefaultClientConfig()
	cfg.URL = server.URL + "/ws"

	err := NewClient(cfg, nil).Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_StateErrors(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.URL = "ftp://localhost/ws"

	client := NewClient(cfg, nil)
	assert.ErrorIs(t, client.Connect(context.Background()), ErrBadURL)

	_, err := client.Subscribe("/sub/auction/1")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, client.Close())
	assert.True(t, errors.Is(client.Connect(context.Background()), ErrAlreadyClosed))
}

func TestManager_WithStompBroker(t *testing.T) {
	broker := newStompBroker(t)

	cfg := DefaultManagerConfig()
	cfg.Client = broker.clientConfig()
	m := NewManager(cfg, nil)
	defer m.Stop(context.Background())

	received := make(chan Message, 1)
	id := m.Subscribe("/sub/auction/9", func(msg Message) { received <- msg })

	require.NoError(t, m.Connect(context.Background()))
	require.Eventually(t, func() bool { return broker.subscribed("/sub/auction/9") }, 2*time.Second, 10*time.Millisecond)

	broker.publish("/sub/auction/9", `{"participantCount":4}`)

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.SubscriptionID)
		assert.JSONEq(t, `{"participantCount":4}`, string(msg.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

package connection

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a WebSocket to the byte stream a STOMP connection expects.
// Each Write becomes one text message; reads are concatenated across
// messages.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	reader io.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	lostOnce  sync.Once
	onLost    func(error)
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration, onLost func(error)) *wsConn {
	return &wsConn{
		conn:         conn,
		writeTimeout: writeTimeout,
		onLost:       onLost,
	}
}

// Read is called from a single goroutine (the STOMP reader).
func (w *wsConn) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				w.lost(err)
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if err == io.EOF {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			w.lost(err)
		}
		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.writeTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		w.lost(err)
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}

func (w *wsConn) lost(err error) {
	w.lostOnce.Do(func() {
		if w.onLost != nil {
			w.onLost(err)
		}
	})
}

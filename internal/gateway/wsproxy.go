package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// forwardedWSHeaders are passed to the backend handshake so the session
// cookie reaches it.
var forwardedWSHeaders = []string{"Cookie", "Authorization"}

func (s *Server) wsProxyHandler(c *gin.Context) {
	if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		c.String(http.StatusBadRequest, "Expected websocket")
		return
	}

	target := s.cfg.BackendWSURL
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}

	header := http.Header{}
	for _, k := range forwardedWSHeaders {
		if v := c.GetHeader(k); v != "" {
			header.Set(k, v)
		}
	}

	backend, resp, err := s.dialer.DialContext(c.Request.Context(), target, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		s.logger.Error("backend websocket dial failed", "error", err, "url", target, "status", status)
		c.String(http.StatusBadGateway, "Bad Gateway")
		return
	}

	client, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("client websocket upgrade failed", "error", err)
		backend.Close()
		return
	}

	s.logger.Info("websocket bridge opened", "remote", c.ClientIP(), "backend", target)
	err = bridge(client, backend)
	s.logger.Info("websocket bridge closed", "remote", c.ClientIP(), "reason", err)
}

// bridge relays messages both ways until either side fails, then closes both.
func bridge(client, backend *websocket.Conn) error {
	errc := make(chan error, 2)
	go func() { errc <- relay(backend, client) }()
	go func() { errc <- relay(client, backend) }()

	err := <-errc
	client.Close()
	backend.Close()
	<-errc
	return err
}

// relay copies messages from src to dst. A close frame from src is passed on
// to dst before returning.
func relay(dst, src *websocket.Conn) error {
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				msg := websocket.FormatCloseMessage(ce.Code, ce.Text)
				if ce.Code == websocket.CloseNoStatusReceived {
					msg = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				}
				dst.WriteMessage(websocket.CloseMessage, msg)
			}
			return err
		}
		if err := dst.WriteMessage(mt, data); err != nil {
			return err
		}
	}
}

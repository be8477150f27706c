package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// proxyFailed is the body returned when the backend cannot be reached.
var proxyFailed = gin.H{"error": "Proxy request failed"}

// BackendURL maps a proxied path and raw query to the backend URL.
func (s *Server) BackendURL(path, rawQuery string) string {
	u := s.cfg.BackendURL + "/api/" + strings.TrimPrefix(path, "/")
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (s *Server) proxyHandler(c *gin.Context) {
	method := c.Request.Method
	target := s.BackendURL(c.Param("path"), c.Request.URL.RawQuery)

	var body io.Reader
	if method == http.MethodPost || method == http.MethodPut {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			s.logger.Error("read request body", "error", err)
			c.JSON(http.StatusInternalServerError, proxyFailed)
			return
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), method, target, body)
	if err != nil {
		s.logger.Error("build proxy request", "error", err, "url", target)
		c.JSON(http.StatusInternalServerError, proxyFailed)
		return
	}
	CopyRequestHeaders(req.Header, c.Request.Header)

	s.logger.Debug("proxying request", "method", method, "url", target)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("proxy request failed", "error", err, "url", target)
		c.JSON(http.StatusInternalServerError, proxyFailed)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Error("read backend response", "error", err, "url", target)
		c.JSON(http.StatusInternalServerError, proxyFailed)
		return
	}

	CopyResponseHeaders(c.Writer.Header(), resp.Header)
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), data)
}

// CopyRequestHeaders copies client headers except those starting with host
// or origin. Accept-Encoding is left to the transport, which then
// decompresses the response itself.
func CopyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "host") || strings.HasPrefix(lower, "origin") || lower == "accept-encoding" {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// CopyResponseHeaders copies backend headers except transfer-encoding and
// content-encoding.
func CopyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "transfer-encoding") || strings.HasPrefix(lower, "content-encoding") {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

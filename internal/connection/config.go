package connection

import (
	"net/http"

	"github.com/bidflow/auction-client/internal/config"
)

// ManagerConfigFrom builds a ManagerConfig from loaded configuration. jar is
// the REST client's cookie jar, so the handshake carries the login session.
func ManagerConfigFrom(api config.APIConfig, c config.ConnectionConfig, jar http.CookieJar) ManagerConfig {
	cfg := DefaultManagerConfig()

	cfg.Client.URL = api.WSURL
	cfg.Client.SockJS = !c.DisableSockJS
	cfg.Client.Jar = jar
	if c.HeartbeatOutgoing > 0 {
		cfg.Client.HeartbeatOutgoing = c.HeartbeatOutgoing
	}
	if c.HeartbeatIncoming > 0 {
		cfg.Client.HeartbeatIncoming = c.HeartbeatIncoming
	}
	if c.HandshakeTimeout > 0 {
		cfg.Client.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.WriteTimeout > 0 {
		cfg.Client.WriteTimeout = c.WriteTimeout
	}

	if c.MaxReconnectAttempts > 0 {
		cfg.MaxReconnectAttempts = c.MaxReconnectAttempts
	}
	if c.ReconnectBaseDelay > 0 {
		cfg.ReconnectBaseDelay = c.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay > 0 {
		cfg.ReconnectMaxDelay = c.ReconnectMaxDelay
	}
	return cfg
}

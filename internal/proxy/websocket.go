package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vyrodovalexey/devproxy/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// serveWebSocket dials the destination, upgrades the client connection and
// relays messages in both directions until either side closes. The
// handshake response feeds the credential lifecycle like any other
// forward; a failed dial counts as a forward failure.
func (p *Proxy) serveWebSocket(w http.ResponseWriter, r *http.Request, state *State, res Result) {
	name := res.Decision.Record.Name()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  p.transports.TLSConfig(res.Forward.VerifyTLS),
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
	}

	header := websocketRequestHeaders(r)
	res.Forward.Apply(header)
	if !res.Forward.ChangeOrigin {
		header.Set("Host", r.Host)
	}

	backendConn, resp, err := dialer.DialContext(r.Context(), websocketURL(res.URL), header)
	if err != nil {
		if resp == nil {
			p.forwardFailed(w, r, state, name, res.Forward.Target, err)
			return
		}
		defer resp.Body.Close()
		p.observeResponse(state, name, resp)
		copyHeader(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		p.logger.WithContext(r.Context()).Debug("websocket handshake rejected",
			observability.String("destination", name),
			observability.Int("status", resp.StatusCode),
		)
		return
	}
	defer backendConn.Close()

	p.observeResponse(state, name, resp)

	clientConn, err := upgrader.Upgrade(w, r, websocketResponseHeaders(resp))
	if err != nil {
		p.logger.WithContext(r.Context()).Debug("websocket client upgrade failed", observability.Error(err))
		return
	}
	defer clientConn.Close()

	relay(clientConn, backendConn)
}

// relay copies messages between the connections and returns when one
// direction ends.
func relay(clientConn, backendConn *websocket.Conn) {
	errCh := make(chan error, 2)

	pump := func(dst, src *websocket.Conn) {
		for {
			msgType, msg, err := src.ReadMessage()
			if err != nil {
				_ = dst.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode(err), ""))
				errCh <- err
				return
			}
			if err := dst.WriteMessage(msgType, msg); err != nil {
				errCh <- err
				return
			}
		}
	}

	go pump(clientConn, backendConn)
	go pump(backendConn, clientConn)

	<-errCh
}

// closeCode returns the code to forward for a read error. Codes that must
// not appear on the wire become a normal closure.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure && ce.Code != websocket.CloseNoStatusReceived {
		return ce.Code
	}
	return websocket.CloseNormalClosure
}

func websocketURL(u *url.URL) string {
	c := *u
	if c.Scheme == "https" {
		c.Scheme = "wss"
	} else {
		c.Scheme = "ws"
	}
	return c.String()
}

// websocketRequestHeaders copies the client headers gorilla does not set
// itself.
func websocketRequestHeaders(r *http.Request) http.Header {
	header := http.Header{}
	for k, vv := range r.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-key",
			"sec-websocket-version", "sec-websocket-extensions":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	return header
}

func websocketResponseHeaders(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	header := http.Header{}
	for k, vv := range resp.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-accept", "sec-websocket-extensions":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	return header
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

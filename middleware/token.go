package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/notehub/notes-api/config"
)

// Transport identifies how a connection carries its credentials
type Transport int

const (
	// TransportHTTP is a plain HTTP request with a bearer header
	TransportHTTP Transport = iota + 1

	// TransportWebSocket is a WebSocket handshake with the token in the subprotocol list
	TransportWebSocket
)

// String returns the transport name used in logs and metrics
func (t Transport) String() string {
	switch t {
	case TransportHTTP:
		return "http"
	case TransportWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

const (
	// WebSocketProtocolHeader carries the token during a WebSocket handshake
	WebSocketProtocolHeader = "Sec-WebSocket-Protocol"

	bearerPrefix          = "Bearer "
	webSocketBearerPrefix = "Authorization.Bearer."
	protocolSeparator     = ","
)

// ErrTokenAbsent is returned when a connection carries no usable bearer token
var ErrTokenAbsent = errors.New("no bearer token")

// Connection is the part of an inbound connection the gate looks at
type Connection struct {
	Transport Transport
	Header    http.Header
}

// HTTPConnection wraps a plain HTTP request
func HTTPConnection(header http.Header) Connection {
	return Connection{Transport: TransportHTTP, Header: header}
}

// WebSocketConnection wraps a WebSocket handshake request
func WebSocketConnection(header http.Header) Connection {
	return Connection{Transport: TransportWebSocket, Header: header}
}

// ConnectionFromRequest classifies r by whether it asks for a WebSocket upgrade
func ConnectionFromRequest(r *http.Request) Connection {
	if websocket.IsWebSocketUpgrade(r) {
		return WebSocketConnection(r.Header)
	}
	return HTTPConnection(r.Header)
}

// ExtractToken pulls the raw bearer token out of conn.
// headerName is only consulted for HTTP connections.
func ExtractToken(conn Connection, headerName string) (string, error) {
	switch conn.Transport {
	case TransportHTTP:
		return extractBearerToken(conn.Header, headerName)
	case TransportWebSocket:
		return extractProtocolToken(conn.Header)
	default:
		return "", fmt.Errorf("unsupported transport %d", conn.Transport)
	}
}

// extractBearerToken requires the exact "Bearer " prefix; no other scheme spelling is accepted
func extractBearerToken(header http.Header, headerName string) (string, error) {
	if headerName == "" {
		headerName = config.DefaultAuthHeader
	}

	value := header.Get(headerName)
	if value == "" {
		return "", fmt.Errorf("%w: missing header %q", ErrTokenAbsent, headerName)
	}

	token, ok := strings.CutPrefix(value, bearerPrefix)
	if !ok || token == "" {
		return "", fmt.Errorf("%w: missing bearer token in %q", ErrTokenAbsent, headerName)
	}

	return token, nil
}

// extractProtocolToken scans the offered subprotocols for the first Authorization.Bearer.<token> entry
func extractProtocolToken(header http.Header) (string, error) {
	for _, protocol := range offeredProtocols(header) {
		if token, ok := strings.CutPrefix(protocol, webSocketBearerPrefix); ok {
			if token == "" {
				break
			}
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: missing %s<token> in %s", ErrTokenAbsent, webSocketBearerPrefix, WebSocketProtocolHeader)
}

// offeredProtocols returns the trimmed entries of every Sec-WebSocket-Protocol header line
func offeredProtocols(header http.Header) []string {
	var protocols []string
	for _, line := range header.Values(WebSocketProtocolHeader) {
		for _, p := range strings.Split(line, protocolSeparator) {
			protocols = append(protocols, strings.TrimSpace(p))
		}
	}
	return protocols
}

// NegotiateSubprotocol picks the subprotocol a successful upgrade should echo back.
// Browsers fail the handshake if a requested subprotocol is not answered, so the
// first non-credential entry is preferred and the credential entry is the fallback.
func NegotiateSubprotocol(r *http.Request) string {
	var credential string
	for _, protocol := range offeredProtocols(r.Header) {
		if protocol == "" {
			continue
		}
		if strings.HasPrefix(protocol, webSocketBearerPrefix) {
			if credential == "" {
				credential = protocol
			}
			continue
		}
		return protocol
	}
	return credential
}

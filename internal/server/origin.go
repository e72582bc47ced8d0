package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// defaultOrigins are the local dashboard dev servers.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// originAllowed reports whether origin matches the allow list. An empty
// origin (non-browser client) is always allowed and "*" allows anything.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		allowed = defaultOrigins
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowed, r.Header.Get("Origin"))
		},
	}
}

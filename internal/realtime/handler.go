package realtime

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/sakif/family-finance/internal/auth"
)

// Handler upgrades authenticated requests and attaches them to the hub. It
// must sit behind auth.RequireAuth.
func Handler(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("realtime: accept failed", slog.String("error", err.Error()))
			return
		}
		defer conn.CloseNow()

		logger.Debug("realtime: client connected", slog.String("userID", userID))
		NewClient(hub, conn, userID).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}

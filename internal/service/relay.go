package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/family-finance/internal/events"
)

// relayTimeout bounds the audience lookup and publish of one relayed event.
const relayTimeout = 5 * time.Second

// RelayProfileUpdates forwards profile changes to everyone who can see the
// user, so open rosters refresh. The returned function stops the relay.
func RelayProfileUpdates(sessions *SessionManager, visibility Visibility, pub events.Publisher, logger *slog.Logger) func() {
	return sessions.Subscribe(func(e SessionEvent) {
		if e.Type != SessionProfileUpdated {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()

		audience, err := visibility.VisibleUserIDs(ctx, e.UserID)
		if err != nil {
			logger.Warn("could not resolve profile update audience",
				slog.String("userID", e.UserID),
				slog.String("error", err.Error()),
			)
			audience = []string{e.UserID}
		}

		ev := events.New(events.EntityProfile, events.ActionUpdated, e.UserID, e.UserID, audience)
		if err := pub.Publish(ctx, ev); err != nil {
			logger.Warn("event publish failed",
				slog.String("type", ev.Type),
				slog.String("error", err.Error()),
			)
		}
	})
}

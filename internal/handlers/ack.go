// internal/handlers/ack.go
package handlers

import (
	"errors"

	"github.com/jason-s-yu/planpoker/internal/lobby"
	"github.com/jason-s-yu/planpoker/internal/models"
	"github.com/sirupsen/logrus"
)

// Ack is the reply to every client request. A successful reply may carry the
// lobby snapshot, whose fields are inlined next to "ok".
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	*models.LobbySnapshot
}

const internalErrorMessage = "Internal error"

func okAck(snap *models.LobbySnapshot) Ack {
	return Ack{OK: true, LobbySnapshot: snap}
}

// errAck turns err into a failure reply. Client-facing lobby errors keep their
// message; anything else is logged and hidden.
func errAck(logger *logrus.Logger, event string, err error) Ack {
	var le *lobby.Error
	if errors.As(err, &le) {
		logger.WithFields(logrus.Fields{"event": event, "kind": le.Kind.String()}).Debugf("request rejected: %s", le.Msg)
		return Ack{Error: le.Msg}
	}
	logger.WithFields(logrus.Fields{"event": event}).Errorf("request failed: %v", err)
	return Ack{Error: internalErrorMessage}
}

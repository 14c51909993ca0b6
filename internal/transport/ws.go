package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/observability/logging"
	"ai-compliance-copilot-service/internal/service/ingest"
	"ai-compliance-copilot-service/internal/session"
	"ai-compliance-copilot-service/internal/supervisor"
)

const (
	writeTimeout   = 5 * time.Second
	pingInterval   = 20 * time.Second
	maxMessageSize = 1 << 20 // audio frames arrive base64-encoded in JSON
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token issuance and origin policy live in the fronting gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionStarted acknowledges the websocket upgrade and carries the
// (possibly generated) session ID back to the client.
type sessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// serveSession upgrades the connection, starts a session, and runs the
// reader until the client disconnects or sends a stop message. Alerts flow
// back on a dedicated writer goroutine.
func serveSession(sup *supervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Websocket upgrade failed")
			return
		}

		sess, err := sup.Start(sessionID)
		if err != nil {
			logger := log.With().Str("sessionId", sessionID).Logger()
			logger.Warn().Err(err).Msg("Session start failed")
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			_ = conn.Close()
			return
		}
		logger := logging.WithSession(sess.ID)

		conn.SetReadLimit(maxMessageSize)

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(sessionStarted{Type: "session_started", SessionID: sess.ID}); err != nil {
			logger.Warn().Err(err).Msg("Failed to ack session start")
			sup.Stop(sess.ID, ingest.ReasonUpstreamDisconnect)
			_ = conn.Close()
			return
		}

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeAlerts(conn, sess, logger)
		}()

		readMessages(conn, sess, sup, logger)

		// Reader is done: client went away or asked to stop. Stopping the
		// session closes the alert channel, which ends the writer.
		sup.Stop(sess.ID, ingest.ReasonUpstreamDisconnect)
		<-writerDone
		_ = conn.Close()
	}
}

// readMessages consumes inbound messages until error or stop.
func readMessages(conn *websocket.Conn, sess *session.Session, sup *supervisor.Supervisor, logger zerolog.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}

		var msg models.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("Malformed inbound message")
			continue
		}
		if err := msg.Validate(); err != nil {
			logger.Warn().Err(err).Msg("Invalid inbound message")
			continue
		}

		switch msg.Type {
		case models.MessageTypeTranscript:
			seg := models.TranscriptSegment{
				Speaker:    msg.Speaker,
				Text:       msg.Text,
				Timestamp:  msg.Timestamp,
				Confidence: msg.Confidence,
			}
			if seg.Timestamp == 0 {
				seg.Timestamp = float64(time.Now().UnixMilli()) / 1000.0
			}
			if err := sup.PushTranscript(sess.ID, seg); err != nil {
				logger.Debug().Err(err).Msg("Transcript rejected")
			}

		case models.MessageTypeAudio:
			if err := sup.PushAudio(sess.ID, msg.Speaker, msg.Audio); err != nil {
				logger.Debug().Err(err).Msg("Audio frame rejected")
			}

		case models.MessageTypeStop:
			logger.Info().Msg("Client requested stop")
			return
		}
	}
}

// writeAlerts drains the session's alert channel to the socket, pinging
// periodically so intermediaries keep the connection open. Exits when the
// channel closes on session stop.
func writeAlerts(conn *websocket.Conn, sess *session.Session, logger zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case a, ok := <-sess.Alerts():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(a); err != nil {
				logger.Warn().Err(err).Msg("Alert write failed")
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Warn().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

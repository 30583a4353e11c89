package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/anesthesia/internal/drawing"
	"github.com/ehr/anesthesia/internal/platform/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// ChartLoader returns the saved intraoperative chart of a patient; ok is
// false when none has been saved yet.
type ChartLoader interface {
	LoadChart(ctx context.Context, patient string) (d drawing.Drawing, ok bool, err error)
}

// Sizes are the logical surface sizes used when the browser does not send
// its own.
type Sizes struct {
	SignatureWidth  float64
	SignatureHeight float64
	ChartWidth      float64
	ChartHeight     float64
}

// Handler upgrades capture and viewer connections.
type Handler struct {
	hub      *Hub
	charts   ChartLoader
	sizes    Sizes
	logger   zerolog.Logger
	upgrader gorillawebsocket.Upgrader
}

// NewHandler creates a capture handler. charts may be nil; origins lists
// the allowed Origin headers, empty allows any.
func NewHandler(hub *Hub, charts ChartLoader, sizes Sizes, origins []string, logger zerolog.Logger) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		hub:    hub,
		charts: charts,
		sizes:  sizes,
		logger: logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// RegisterRoutes registers the capture endpoints on the provided group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/capture/watch/ws", h.Watch)
	g.GET("/capture/:surface/ws", h.Capture)
}

// Capture opens a drawing session. Query: patient, width, height, dpr.
// The handler goroutine reads and processes frames until the connection
// closes, so all frames of a session are applied sequentially.
func (h *Handler) Capture(c echo.Context) error {
	kind, err := ParseSurfaceKind(c.Param("surface"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	patient := c.QueryParam("patient")

	defW, defH := h.sizes.SignatureWidth, h.sizes.SignatureHeight
	if kind == SurfaceChart {
		defW, defH = h.sizes.ChartWidth, h.sizes.ChartHeight
	}
	width, err := floatParam(c, "width", defW)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	height, err := floatParam(c, "height", defH)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	dpr, err := floatParam(c, "dpr", 1)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := drawing.ValidateGeometry(width, height, dpr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	session := NewSession(uuid.NewString(), kind, patient, width, height, dpr)
	restored := h.restore(c.Request().Context(), session)

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		session.Close()
		return err
	}
	c.Set(middleware.SessionIDKey, session.ID)

	log := h.logger.With().
		Str("session_id", session.ID).
		Str("surface", string(kind)).
		Str("patient", patient).
		Logger()
	log.Info().Float64("width", width).Float64("height", height).Float64("dpr", dpr).Msg("capture session opened")

	send := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(ws, send)
	}()

	if patient != "" {
		h.hub.BeginCapture(PatientTopic(patient))
	}
	if restored {
		queue(send, done, session.Snapshot())
	}
	h.readPump(ws, session, send, done, log)

	close(send)
	<-done
	if patient != "" {
		h.hub.EndCapture(PatientTopic(patient))
	}
	_ = session.Close()
	log.Info().Int("events", session.Events()).Msg("capture session closed")
	return nil
}

func (h *Handler) restore(ctx context.Context, s *Session) bool {
	if h.charts == nil || s.Kind != SurfaceChart || s.Patient == "" {
		return false
	}
	d, ok, err := h.charts.LoadChart(ctx, s.Patient)
	if err != nil {
		h.logger.Warn().Err(err).Str("patient", s.Patient).Msg("load saved chart")
		return false
	}
	if !ok {
		return false
	}
	if err := s.Restore(d); err != nil {
		h.logger.Warn().Err(err).Str("patient", s.Patient).Msg("saved chart rejected")
		return false
	}
	return true
}

func (h *Handler) readPump(ws *gorillawebsocket.Conn, s *Session, send chan<- []byte, done <-chan struct{}, log zerolog.Logger) {
	defer ws.Close()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	topic := PatientTopic(s.Patient)
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if gorillawebsocket.IsUnexpectedCloseError(err, gorillawebsocket.CloseGoingAway, gorillawebsocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("capture connection lost")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Warn().Err(err).Msg("malformed capture frame")
			if !queue(send, done, errorFrame(fmt.Errorf("malformed frame: %w", err))) {
				return
			}
			continue
		}

		for _, out := range s.Process(frame) {
			if out.Type == FrameError {
				log.Debug().Str("frame", frame.Type).Str("error", out.Message).Msg("capture frame rejected")
			}
			if !queue(send, done, out) {
				return
			}
			if s.Patient != "" && out.broadcastable() {
				h.hub.Broadcast(topic, out)
			}
		}
	}
}

// queue hands a frame to the writer; false once the writer has stopped.
func queue(send chan<- []byte, done <-chan struct{}, f ServerFrame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		return true
	}
	select {
	case send <- data:
		return true
	case <-done:
		return false
	}
}

// Watch subscribes a viewer to a patient's capture updates. Query: patient.
func (h *Handler) Watch(c echo.Context) error {
	patient := c.QueryParam("patient")
	if patient == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient is required")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.NewString(), PatientTopic(patient))
	c.Set(middleware.SessionIDKey, client.ID)
	h.hub.Register(client)
	h.logger.Debug().Str("client_id", client.ID).Str("patient", patient).Msg("viewer connected")

	go writePump(ws, client.Send)

	// Viewers only send control frames; reading keeps pongs flowing and
	// notices the close.
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(client)
	ws.Close()
	h.logger.Debug().Str("client_id", client.ID).Msg("viewer disconnected")
	return nil
}

// writePump writes queued frames and keeps the connection alive with
// pings until send is closed or a write fails.
func writePump(ws *gorillawebsocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func floatParam(c echo.Context, name string, def float64) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

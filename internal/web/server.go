package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/input"
	"github.com/park285/Cheese-arena/internal/render"
	"github.com/park285/Cheese-arena/internal/rules"
	"github.com/park285/Cheese-arena/internal/turn"
)

const maxBody = 4 << 10

// Server is the local board: a rendered PNG the user clicks on, plus
// endpoints for the undo/enable/resign controls and an event stream.
type Server struct {
	loop     *turn.Loop
	hub      *Hub
	renderer *render.Renderer
	logger   *zap.Logger
	mux      *http.ServeMux
}

func NewServer(loop *turn.Loop, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{loop: loop, hub: hub, renderer: render.New(), logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /board.png", s.handleBoard)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /events", s.hub.ServeWS)
	s.mux.HandleFunc("POST /click", s.handleClick)
	s.mux.HandleFunc("POST /move", s.handleMove)
	s.mux.HandleFunc("POST /undo", s.handleUndo)
	s.mux.HandleFunc("POST /resign", s.handleResign)
	s.mux.HandleFunc("POST /agents/{color}", s.handleAgent)
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("web_board_listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	g := s.loop.Session().Geometry()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, pageData{
		ID:     snap.ID,
		Width:  int(2*g.OriginX + g.Side),
		Height: int(2*g.OriginY + g.Side),
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	var opts render.Options
	if mv, err := board.ParseMove(snap.LastMove); err == nil {
		opts.LastMove = &mv
	}
	if sq, err := board.ParseSquare(snap.Pending); err == nil {
		opts.Pending = &sq
	}
	png, err := s.renderer.RenderPNG(r.Context(), snap.FEN, s.loop.Session().Geometry(), opts)
	if err != nil {
		s.logger.Warn("board_render_failed", zap.String("session_id", snap.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "render failed"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r, http.StatusOK, nil)
}

type clickRequest struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Buttons   *uint8  `json:"buttons"`
	Promotion string  `json:"promotion"`
}

type clickResponse struct {
	Outcome string        `json:"outcome"`
	Error   string        `json:"error,omitempty"`
	State   turn.Snapshot `json:"state"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !decode(w, r, &req) {
		return
	}
	choose, err := chooserFor(req.Promotion)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	buttons := input.ButtonPrimary
	if req.Buttons != nil {
		buttons = input.Button(*req.Buttons)
	}
	out, err := s.loop.Click(r.Context(), input.Point{X: req.X, Y: req.Y}, buttons, choose)
	if errors.Is(err, turn.ErrLoopStopped) || errors.Is(err, context.Canceled) {
		s.fail(w, err)
		return
	}
	snap, serr := s.loop.Snapshot(r.Context())
	if serr != nil {
		s.fail(w, serr)
		return
	}
	resp := clickResponse{Outcome: out.String(), State: snap}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

type moveRequest struct {
	Move      string `json:"move"`
	Promotion string `json:"promotion"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decode(w, r, &req) {
		return
	}
	mv, err := board.ParseMove(req.Move)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	choose, err := chooserFor(req.Promotion)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	err = s.loop.SubmitMove(r.Context(), mv, choose)
	s.writeState(w, r, statusFor(err), err)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	ok, err := s.loop.Undo(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	snap, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"undone": ok, "state": snap})
}

type colorRequest struct {
	Color string `json:"color"`
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := board.ParseColor(req.Color)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	err = s.loop.Resign(r.Context(), c)
	s.writeState(w, r, statusFor(err), err)
}

type agentRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	c, err := board.ParseColor(r.PathValue("color"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	var req agentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "enabled is required"})
		return
	}
	err = s.loop.SetEnabled(r.Context(), c, *req.Enabled)
	s.writeState(w, r, statusFor(err), err)
}

// chooserFor answers a promotion prompt with the value sent alongside the
// request: empty means queen, "cancel" drops the move.
func chooserFor(v string) (input.PromotionChooser, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "cancel" {
		return func(board.Move) input.PromotionChoice { return input.PromotionChoice{Cancel: true} }, nil
	}
	kind, ok := board.ParsePieceKind(v)
	if !ok {
		return nil, fmt.Errorf("unknown promotion piece %q", v)
	}
	return func(board.Move) input.PromotionChoice { return input.PromotionChoice{Kind: kind} }, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type stateResponse struct {
	Error string        `json:"error,omitempty"`
	State turn.Snapshot `json:"state"`
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, status int, opErr error) {
	if errors.Is(opErr, turn.ErrLoopStopped) {
		s.fail(w, opErr)
		return
	}
	snap, err := s.loop.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := stateResponse{State: snap}
	if opErr != nil {
		resp.Error = opErr.Error()
	}
	writeJSON(w, status, resp)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, turn.ErrGameOver), errors.Is(err, turn.ErrNotAccepting), errors.Is(err, turn.ErrPromotionCancelled):
		return http.StatusConflict
	case errors.Is(err, rules.ErrIllegalMove):
		return http.StatusUnprocessableEntity
	case errors.Is(err, turn.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

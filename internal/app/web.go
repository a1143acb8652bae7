package app

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/flight_command/internal/command"
	"github.com/relabs-tech/flight_command/internal/geo"
	"github.com/relabs-tech/flight_command/internal/telemetry"
)

//go:embed static
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // ground station page is served from the same box
	},
}

// vehicleAPI is the part of flight.Vehicle the web monitor drives.
type vehicleAPI interface {
	Telemetry() *telemetry.Store
	Arm(ctx context.Context) bool
	SetGuidedMode(ctx context.Context) bool
	TakeOff(ctx context.Context, altitude float64) bool
	Land(ctx context.Context) bool
	SetServoPWM(ctx context.Context, pulseWidthUs float64) bool
	FlyTo(lat, lon, alt float64) error
	IsInPosition(dest geo.Point) bool
}

// outcomeLister is the read side of the journal.
type outcomeLister interface {
	Outcomes(ctx context.Context, limit int) ([]command.Outcome, error)
}

type webServer struct {
	v        vehicleAPI
	outcomes outcomeLister // nil when the journal is disabled
	log      *slog.Logger
	push     time.Duration
}

// RunWeb serves the telemetry API, the live websocket feed and the command
// endpoints on WEB_SERVER_PORT until Ctrl+C.
func RunWeb() error {
	rt, err := setup("web")
	if err != nil {
		return err
	}
	defer rt.close()

	v, err := rt.vehicle()
	if err != nil {
		return err
	}

	ws := &webServer{v: v, log: rt.log.With("component", "web"), push: 200 * time.Millisecond}
	if rt.jrn != nil {
		ws.outcomes = rt.jrn
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.WebServerPort),
		Handler:           ws.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		ws.log.Info("web server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if rt.jrn != nil && rt.cfg.JournalSnapshotInterval > 0 {
		eg.Go(func() error {
			return rt.jrn.Run(ctx, v.Telemetry(), time.Duration(rt.cfg.JournalSnapshotInterval)*time.Millisecond)
		})
	}
	return eg.Wait()
}

func (s *webServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /ws/telemetry", s.handleTelemetryWS)
	mux.HandleFunc("POST /api/command/{name}", s.handleCommand)
	mux.HandleFunc("POST /api/setpoint", s.handleSetpoint)
	mux.HandleFunc("GET /api/outcomes", s.handleOutcomes)

	static, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}

// handleTelemetry returns the latest snapshot, or 503 until anything arrived.
func (s *webServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	sn := s.v.Telemetry().Snapshot()
	if !sn.Any() {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, sn)
}

// handleTelemetryWS pushes a snapshot every push interval until the client
// goes away.
func (s *webServer) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// Reader: only there to notice the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.push)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(s.v.Telemetry().Snapshot()); err != nil {
				s.log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

type commandRequest struct {
	Altitude float64 `json:"altitude"`
	PWM      float64 `json:"pwm"`
}

type commandResponse struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
}

func (s *webServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	var resp commandResponse
	switch name := r.PathValue("name"); name {
	case "arm":
		resp = commandResponse{command.NameArm, s.v.Arm(ctx)}
	case "guided":
		resp = commandResponse{command.NameGuided, s.v.SetGuidedMode(ctx)}
	case "takeoff":
		if req.Altitude <= 0 {
			http.Error(w, "altitude must be positive", http.StatusBadRequest)
			return
		}
		resp = commandResponse{command.NameTakeOff, s.v.TakeOff(ctx, req.Altitude)}
	case "land":
		resp = commandResponse{command.NameLand, s.v.Land(ctx)}
	case "servo":
		if req.PWM <= 0 {
			http.Error(w, "pwm must be positive", http.StatusBadRequest)
			return
		}
		resp = commandResponse{command.NameServo, s.v.SetServoPWM(ctx, req.PWM)}
	default:
		http.Error(w, "unknown command "+strconv.Quote(name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type setpointRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

type setpointResponse struct {
	Sent       bool `json:"sent"`
	InPosition bool `json:"in_position"`
}

func (s *webServer) handleSetpoint(w http.ResponseWriter, r *http.Request) {
	var req setpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := geo.ValidateCoordinate(req.Lat, req.Lon); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.v.FlyTo(req.Lat, req.Lon, req.Alt); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, setpointResponse{
		Sent:       true,
		InPosition: s.v.IsInPosition(geo.Point{Lat: req.Lat, Lon: req.Lon}),
	})
}

func (s *webServer) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if s.outcomes == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	out, err := s.outcomes.Outcomes(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []command.Outcome{}
	}
	writeJSON(w, http.StatusOK, out)
}

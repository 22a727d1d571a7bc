// Package api provides the HTTP and WebSocket surface of the coating host
// daemon. Frontends submit project snapshots for generation, fetch stored
// programs and run history, and follow generation progress live over the
// websocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"coating-host/pkg/config"
	"coating-host/pkg/emit"
	hosterr "coating-host/pkg/errors"
	"coating-host/pkg/history"
	"coating-host/pkg/log"
	"coating-host/pkg/metrics"
	"coating-host/pkg/pipeline"
	"coating-host/pkg/project"
)

// Version is the host software version reported by /api/info.
const Version = "0.3.0"

// Config holds the server wiring.
type Config struct {
	Settings *config.Settings
	History  *history.Store
	Logger   *log.Logger
}

// Server is the coating host API server.
type Server struct {
	settings  *config.Settings
	generator *pipeline.Generator
	history   *history.Store
	programs  *ProgramStore
	logger    *log.Logger
	metrics   *metrics.CoatingMetrics

	httpServer *http.Server
	upgrader   websocket.Upgrader

	wsClients  map[int64]*wsClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	// genMu serializes generation runs: there is one machine.
	genMu sync.Mutex

	running   atomic.Bool
	startTime time.Time
}

// New creates the API server. The program store lives under the configured
// data directory.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New("api")
	}

	programs, err := NewProgramStore(filepath.Join(cfg.Settings.Server.DataDir, "programs"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		settings:  cfg.Settings,
		generator: pipeline.NewGenerator(cfg.Settings, logger.WithPrefix("pipeline")),
		history:   cfg.History,
		programs:  programs,
		logger:    logger,
		metrics:   metrics.GlobalMetrics(),
		wsClients: make(map[int64]*wsClient),
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return s, nil
}

// Programs returns the program store.
func (s *Server) Programs() *ProgramStore {
	return s.programs
}

// Handler returns the full route table. Exposed separately from Start so
// tests can drive the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/programs", s.handlePrograms)
	mux.HandleFunc("/api/programs/download", s.handleProgramDownload)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/totals", s.handleHistoryTotals)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/websocket", s.handleWebSocket)

	return s.corsMiddleware(mux)
}

// Start runs the server until Stop or a listen error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.settings.Server.Listen,
		Handler: s.Handler(),
	}
	s.running.Store(true)
	s.logger.Info("API server listening on %s", s.settings.Server.Listen)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down and closes all websocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	s.wsClientMu.Lock()
	for _, c := range s.wsClients {
		c.Close()
	}
	s.wsClients = make(map[int64]*wsClient)
	s.wsClientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// generateResponse is the /api/generate result payload.
type generateResponse struct {
	RunID       string               `json:"runId"`
	Status      string               `json:"status"`
	ProgramFile string               `json:"programFile,omitempty"`
	ShapeCount  int                  `json:"shapeCount"`
	MoveCount   int                  `json:"moveCount"`
	Preview     []emit.PreviewPoint  `json:"preview,omitempty"`
	Groups      []pipeline.PathGroup `json:"groups,omitempty"`
	Duration    string               `json:"duration,omitempty"`
}

// handleGenerate runs one generation over the posted project snapshot.
// Progress is broadcast over the websocket as notify_progress; the final
// outcome as notify_generation_done. GENERATE_EMPTY is a soft outcome and
// reported with 200; every other failure is fatal and reported with 500.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/generate")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(r)
	if err != nil {
		s.writeError(w, hosterr.Wrap(err, hosterr.ErrProjectParse, "unreadable request body"), http.StatusBadRequest)
		return
	}
	proj, err := project.Parse(body)
	if err != nil {
		s.writeError(w, err, http.StatusBadRequest)
		return
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	run, err := s.history.StartRun(r.Context(), proj.Name)
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}

	onProgress := func(percent float64, message string) {
		s.broadcast("notify_progress", map[string]any{
			"runId":   run.ID,
			"percent": percent,
			"message": message,
		})
	}

	result, genErr := s.generator.Generate(r.Context(), proj.Shapes, proj.WorkArea, proj.Snippets, onProgress)
	if genErr != nil {
		status := history.StatusFailed
		if hosterr.IsNothingToCoat(genErr) {
			status = history.StatusEmpty
		}
		if ferr := s.history.FinishRun(r.Context(), run.ID, status, len(proj.Shapes), 0, 0, genErr.Error()); ferr != nil {
			s.logger.Warn("history update failed: %v", ferr)
		}
		s.broadcast("notify_generation_done", map[string]any{
			"runId":  run.ID,
			"status": status,
			"error":  genErr.Error(),
		})
		if hosterr.IsNothingToCoat(genErr) {
			s.writeJSON(w, map[string]any{"result": generateResponse{
				RunID:  run.ID,
				Status: history.StatusEmpty,
			}})
			return
		}
		s.writeError(w, genErr, http.StatusInternalServerError)
		return
	}

	fileName := fmt.Sprintf("run-%s.gcode", run.ID)
	if _, err := s.programs.Save(fileName, result.GCode); err != nil {
		s.history.FinishRun(r.Context(), run.ID, history.StatusFailed,
			result.ShapeCount, result.MoveCount, 0, err.Error())
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}

	if err := s.history.FinishRun(r.Context(), run.ID, history.StatusCompleted,
		result.ShapeCount, result.MoveCount, int64(len(result.GCode)), ""); err != nil {
		s.logger.Warn("history update failed: %v", err)
	}

	s.broadcast("notify_generation_done", map[string]any{
		"runId":       run.ID,
		"status":      history.StatusCompleted,
		"programFile": fileName,
		"moveCount":   result.MoveCount,
	})

	s.writeJSON(w, map[string]any{"result": generateResponse{
		RunID:       run.ID,
		Status:      history.StatusCompleted,
		ProgramFile: fileName,
		ShapeCount:  result.ShapeCount,
		MoveCount:   result.MoveCount,
		Preview:     result.Preview,
		Groups:      result.Groups,
		Duration:    result.Duration.String(),
	}})
}

// handlePrograms lists or deletes stored programs.
func (s *Server) handlePrograms(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/programs")

	switch r.Method {
	case http.MethodGet:
		programs, err := s.programs.List()
		if err != nil {
			s.writeError(w, err, http.StatusInternalServerError)
			return
		}
		usage, err := s.programs.DiskUsage()
		if err != nil {
			s.logger.Warn("disk usage unavailable: %v", err)
		}
		s.writeJSON(w, map[string]any{"result": map[string]any{
			"programs":   programs,
			"disk_usage": usage,
		}})

	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if name == "" {
			s.writeError(w, hosterr.New(hosterr.ErrStorage, "missing name parameter"), http.StatusBadRequest)
			return
		}
		if err := s.programs.Delete(name); err != nil {
			s.writeError(w, err, http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]any{"result": map[string]any{"deleted": name}})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProgramDownload streams one stored program as plain text.
func (s *Server) handleProgramDownload(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/programs/download")
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, hosterr.New(hosterr.ErrStorage, "missing name parameter"), http.StatusBadRequest)
		return
	}
	gcode, err := s.programs.Read(name)
	if err != nil {
		s.writeError(w, err, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write([]byte(gcode))
}

// handleHistory lists runs or deletes one by id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/history")

	switch r.Method {
	case http.MethodGet:
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			fmt.Sscanf(l, "%d", &limit)
		}
		start := 0
		if v := r.URL.Query().Get("start"); v != "" {
			fmt.Sscanf(v, "%d", &start)
		}
		runs, err := s.history.List(r.Context(), limit, start)
		if err != nil {
			s.writeError(w, err, http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, map[string]any{"result": map[string]any{
			"count": len(runs),
			"runs":  runs,
		}})

	case http.MethodDelete:
		id := r.URL.Query().Get("uid")
		if id == "" {
			s.writeError(w, hosterr.New(hosterr.ErrStorage, "missing uid parameter"), http.StatusBadRequest)
			return
		}
		if err := s.history.Delete(r.Context(), id); err != nil {
			s.writeError(w, err, http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]any{"result": map[string]any{"deleted": id}})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHistoryTotals(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/history/totals")
	totals, err := s.history.Totals(r.Context())
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"result": map[string]any{"totals": totals}})
}

// handleInfo reports host identity and live settings.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordRequest("/api/info")
	hostname, _ := os.Hostname()

	s.wsClientMu.RLock()
	clients := len(s.wsClients)
	s.wsClientMu.RUnlock()

	s.writeJSON(w, map[string]any{"result": map[string]any{
		"hostname":         hostname,
		"software_version": Version,
		"uptime":           time.Since(s.startTime).Seconds(),
		"websocket_count":  clients,
		"machine": map[string]any{
			"work_area_width":  s.settings.Machine.WorkAreaWidth,
			"work_area_height": s.settings.Machine.WorkAreaHeight,
			"pixels_per_mm":    s.settings.Machine.PixelsPerMm,
			"unit":             s.settings.Machine.Unit,
		},
		"process": map[string]any{
			"move_speed":     s.settings.Process.MoveSpeed,
			"coating_speed":  s.settings.Process.CoatingSpeed,
			"safe_height":    s.settings.Process.SafeHeight,
			"coating_height": s.settings.Process.CoatingHeight,
			"line_spacing":   s.settings.Process.LineSpacing,
			"output_format":  s.settings.Process.OutputFormat,
		},
	}})
}

// handleMetrics serves the Prometheus text exposition.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.UpdateSystemMetrics()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(s.metrics.Gather()))
}

// handleWebSocket upgrades the connection and registers the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error: %v", err)
		return
	}

	client := s.newWSClient(conn)
	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	n := len(s.wsClients)
	s.wsClientMu.Unlock()

	s.metrics.WebsocketClients.Set(nil, float64(n))
	s.logger.Debug("websocket client %d connected", client.id)

	go client.writePump()
	client.Send(notification{
		JSONRPC: "2.0",
		Method:  "notify_host_ready",
		Params:  map[string]any{"version": Version},
	})
	client.readPump()
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// writeError reports a failure with its error code so frontends can map
// soft and fatal outcomes without string matching.
func (s *Server) writeError(w http.ResponseWriter, err error, status int) {
	code := hosterr.ErrRuntime
	if he, ok := err.(*hosterr.HostError); ok {
		code = he.Code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(code),
			"message": err.Error(),
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 16<<20))
}

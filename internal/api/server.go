package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/Mohpann/kalshi-weather/internal/config"
	"github.com/Mohpann/kalshi-weather/internal/state"
)

const (
	logTailBytes    = 32 * 1024
	logTailMaxLines = 200
	logPollInterval = 500 * time.Millisecond
)

// Server exposes the persisted snapshot and a live log stream. It reads
// everything from disk so it can run as a separate process from the bot.
type Server struct {
	config  config.DashboardConfig
	store   *state.Store
	logPath string
	log     zerolog.Logger
	server  *http.Server

	mu       sync.Mutex
	cached   []byte
	cachedAt time.Time
}

func NewServer(cfg config.DashboardConfig, store *state.Store, logPath string, log zerolog.Logger) *Server {
	return &Server{
		config:  cfg,
		store:   store,
		logPath: logPath,
		log:     log,
	}
}

func (s *Server) Run(ctx context.Context) error {
	router := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	})

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/snapshot", s.getSnapshot).Methods("GET")
	api.HandleFunc("/health", s.getHealth).Methods("GET")
	router.HandleFunc("/ws/logs", s.streamLogs)

	s.server = &http.Server{
		Addr:    s.config.BindAddress,
		Handler: c.Handler(router),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.config.BindAddress).Msg("dashboard server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// getSnapshot serves the persisted document verbatim. The bytes are cached
// briefly so a busy dashboard does not hammer the filesystem.
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := s.snapshotBytes()
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no snapshot available yet")
			return
		}
		s.log.Error().Err(err).Msg("snapshot read failed")
		writeError(w, http.StatusInternalServerError, "could not read snapshot")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) snapshotBytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := s.config.SnapshotCacheTTL()
	if s.cached != nil && time.Since(s.cachedAt) < ttl {
		return s.cached, nil
	}
	data, err := s.store.ReadRaw()
	if err != nil {
		return nil, err
	}
	s.cached = data
	s.cachedAt = time.Now()
	return data, nil
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status         string  `json:"status"`
		Timestamp      string  `json:"timestamp"`
		SnapshotAgeSec float64 `json:"snapshot_age_secs,omitempty"`
	}{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if mtime, err := s.store.ModTime(); err == nil {
		response.SnapshotAgeSec = time.Since(mtime).Seconds()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamLogs sends the recent tail of the bot's log file and then follows
// it, pushing each completed line as a text message.
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads drain client control frames and detect disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	offset := s.sendBacklog(conn)

	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			var err error
			offset, pending, err = s.sendNewLines(conn, offset, pending)
			if err != nil {
				return
			}
		}
	}
}

// sendBacklog pushes the last stretch of the log file and returns the file
// offset to follow from.
func (s *Server) sendBacklog(conn *websocket.Conn) int64 {
	file, err := os.Open(s.logPath)
	if err != nil {
		return 0
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0
	}
	size := info.Size()

	start := size - logTailBytes
	if start < 0 {
		start = 0
	}
	buf := make([]byte, size-start)
	if _, err := file.ReadAt(buf, start); err != nil {
		return size
	}

	lines := bytes.Split(buf, []byte("\n"))
	if start > 0 && len(lines) > 0 {
		// The first chunk of a mid-file read is almost always a partial line.
		lines = lines[1:]
	}
	if len(lines) > logTailMaxLines {
		lines = lines[len(lines)-logTailMaxLines:]
	}
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return size
		}
	}
	return size
}

// sendNewLines reads bytes appended since offset and pushes completed
// lines. A trailing partial line carries over to the next poll. Truncation
// (rotation) resets the offset to the new end.
func (s *Server) sendNewLines(conn *websocket.Conn, offset int64, pending []byte) (int64, []byte, error) {
	file, err := os.Open(s.logPath)
	if err != nil {
		return offset, pending, nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, pending, nil
	}
	size := info.Size()
	if size < offset {
		return size, nil, nil
	}
	if size == offset {
		return offset, pending, nil
	}

	buf := make([]byte, size-offset)
	if _, err := file.ReadAt(buf, offset); err != nil {
		return offset, pending, nil
	}

	data := append(pending, buf...)
	lines := bytes.Split(data, []byte("\n"))
	carry := lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		if len(line) == 0 {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return size, carry, err
		}
	}
	return size, carry, nil
}

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/lib/dash"
)

const (
	msgInvalidJSON   = "Invalid JSON format"
	msgNotAnArray    = "Request body must be an array of alert configurations."
	msgBadPlatform   = "Invalid platform specified"
	msgNameRequired  = "name required"
	msgTitleRequired = "title required"
	msgIDsRequired   = "ids required"
	msgMsgRequired   = "userId and text required"
	msgChatNotFound  = "chat not found"
	msgNotFound      = "Not Found"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// health and metrics
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// generated data
	mux.HandleFunc("GET /api/metrics/all", s.handleAllMetrics)
	mux.HandleFunc("GET /api/metrics/regional", s.handleRegional)
	mux.HandleFunc("GET /api/metrics/{platform}", s.handlePlatformMetrics)
	mux.HandleFunc("GET /api/alerts/triggered", s.handleTriggered)

	// alerts
	mux.HandleFunc("GET /api/alerts", s.handleGetAlerts)
	mux.HandleFunc("POST /api/alerts", s.handleSaveAlerts)

	// users
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("DELETE /api/users/{id}", s.handleDeleteUser)
	mux.HandleFunc("POST /api/users/deleteMany", s.handleDeleteUsers)

	// chats
	mux.HandleFunc("GET /api/chats", s.handleListChats)
	mux.HandleFunc("POST /api/chats", s.handleCreateChat)
	mux.HandleFunc("DELETE /api/chats/{id}", s.handleDeleteChat)
	mux.HandleFunc("POST /api/chats/deleteMany", s.handleDeleteChats)
	mux.HandleFunc("GET /api/chats/{chatId}/messages", s.handleListMessages)
	mux.HandleFunc("POST /api/chats/{chatId}/messages", s.handleSendMessage)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, msgNotFound)
	})

	route := func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "/api/" {
			return ""
		}
		return pattern
	}

	var h http.Handler = mux
	if s.config.LogLevel == "debug" {
		h = loggerMiddleware(h)
	}
	if s.tracer != nil {
		h = tracingMiddleware(s.tracer, route, h)
	}
	h = metricsMiddleware(s.metrics, route, h)
	return recoverMiddleware(h)
}

// --------------------------------------------------------------------------
// Health & Metrics
// --------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.GetDBInfo()
	if err != nil {
		Logger.Errorf("health check failed: %v", err)
		writeFail(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeOk(w, common.HealthResult{Status: "ok", Store: info})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// --------------------------------------------------------------------------
// Generated data
// --------------------------------------------------------------------------

func (s *Server) handleAllMetrics(w http.ResponseWriter, r *http.Request) {
	writeOk(w, s.gen.AllMetrics())
}

func (s *Server) handleRegional(w http.ResponseWriter, r *http.Request) {
	writeOk(w, s.gen.Regional())
}

func (s *Server) handlePlatformMetrics(w http.ResponseWriter, r *http.Request) {
	platform, ok := dash.ParsePlatform(r.PathValue("platform"))
	if !ok {
		writeFail(w, http.StatusBadRequest, msgBadPlatform)
		return
	}
	writeOk(w, common.PlatformMetricsResult{Platform: platform, Metrics: s.gen.Metrics(platform)})
}

func (s *Server) handleTriggered(w http.ResponseWriter, r *http.Request) {
	writeOk(w, s.gen.Triggered())
}

// --------------------------------------------------------------------------
// Alerts
// --------------------------------------------------------------------------

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	configs, err := s.alerts.Configurations()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, configs)
}

func (s *Server) handleSaveAlerts(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeFail(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if !json.Valid(body) {
		writeFail(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		writeFail(w, http.StatusBadRequest, msgNotAnArray)
		return
	}
	if s.config.StrictAlerts {
		if err := dash.ValidateAlertConfigurations(body); err != nil {
			writeError(w, err)
			return
		}
	}

	var configs []dash.AlertConfiguration
	if err := json.Unmarshal(body, &configs); err != nil {
		writeFail(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := s.alerts.SaveConfigurations(configs); err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, common.SaveAlertsResult{Success: true})
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if err := s.users.EnsureSeed(); err != nil {
		writeError(w, err)
		return
	}
	page, err := s.users.List(r.URL.Query().Get("cursor"), s.pageLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, page)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req common.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := trimmed(req.Name)
	if name == "" {
		writeFail(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	user, err := s.users.Create(dash.User{Name: name})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.users.Delete(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, common.DeleteResult{ID: id, Deleted: deleted})
}

func (s *Server) handleDeleteUsers(w http.ResponseWriter, r *http.Request) {
	s.deleteMany(w, r, s.users.DeleteMany)
}

// --------------------------------------------------------------------------
// Chats
// --------------------------------------------------------------------------

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.EnsureSeed(); err != nil {
		writeError(w, err)
		return
	}
	page, err := s.chats.ListChats(r.URL.Query().Get("cursor"), s.pageLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, page)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req common.CreateChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	title := trimmed(req.Title)
	if title == "" {
		writeFail(w, http.StatusBadRequest, msgTitleRequired)
		return
	}
	chat, err := s.chats.CreateChat(title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, chat)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.chats.Delete(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, common.DeleteResult{ID: id, Deleted: deleted})
}

func (s *Server) handleDeleteChats(w http.ResponseWriter, r *http.Request) {
	s.deleteMany(w, r, s.chats.DeleteMany)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	board := s.chats.Board(r.PathValue("chatId"))
	if !s.boardExists(w, board) {
		return
	}
	msgs, err := board.ListMessages()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req common.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text := trimmed(req.Text)
	if req.UserID == nil || *req.UserID == "" || text == "" {
		writeFail(w, http.StatusBadRequest, msgMsgRequired)
		return
	}

	board := s.chats.Board(r.PathValue("chatId"))
	if !s.boardExists(w, board) {
		return
	}
	msg, err := board.SendMessage(*req.UserID, text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, msg)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *Server) boardExists(w http.ResponseWriter, board *dash.Board) bool {
	ok, err := board.Exists()
	if err != nil {
		writeError(w, err)
		return false
	}
	if !ok {
		writeFail(w, http.StatusNotFound, msgChatNotFound)
		return false
	}
	return true
}

func (s *Server) deleteMany(w http.ResponseWriter, r *http.Request, del func([]string) (int, error)) {
	var req common.DeleteManyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ids := make([]string, 0, len(req.IDs))
	for _, raw := range req.IDs {
		if id, ok := raw.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeFail(w, http.StatusBadRequest, msgIDsRequired)
		return
	}
	count, err := del(ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOk(w, common.DeleteManyResult{DeletedCount: count, IDs: ids})
}

// pageLimit reads the limit query parameter. A given but unparsable or non-positive limit
// becomes 1, a missing one the configured page size.
func (s *Server) pageLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.config.PageSize
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}
	return max(1, int(n))
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xtoazt/gummybear-sub000/pkg/audit"
	"github.com/xtoazt/gummybear-sub000/pkg/auth"
	"github.com/xtoazt/gummybear-sub000/pkg/directory"
	"github.com/xtoazt/gummybear-sub000/pkg/governance"
	"github.com/xtoazt/gummybear-sub000/pkg/signal"
)

// Server exposes the governance core over HTTP.
type Server struct {
	core     *governance.Core
	users    directory.Store
	tokens   *auth.TokenManager
	presence signal.Registry
	exporter *audit.Exporter
	audit    audit.Logger
	logger   *slog.Logger
}

// NewServer assembles the HTTP layer. The audit logger and presence registry
// may be nil; presence endpoints then report 404.
func NewServer(core *governance.Core, users directory.Store, tokens *auth.TokenManager, auditLog audit.Logger, logger *slog.Logger) *Server {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &Server{core: core, users: users, tokens: tokens, audit: auditLog, logger: logger}
}

// WithPresence attaches a presence registry and enables its endpoints.
func (s *Server) WithPresence(reg signal.Registry) *Server {
	s.presence = reg
	return s
}

// WithExporter attaches the audit evidence exporter and enables its endpoint.
func (s *Server) WithExporter(exporter *audit.Exporter) *Server {
	s.exporter = exporter
	return s
}

// Routes registers all endpoints on the mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/signup", s.handleSignup)

	mux.HandleFunc("POST /api/ai/execute", s.handleExecute)
	mux.HandleFunc("GET /api/ai/pending", s.handleListPending)
	mux.HandleFunc("POST /api/ai/pending/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/ai/pending/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/ai/pending/{id}/execute", s.handleExecuteChange)
	mux.HandleFunc("GET /api/ai/capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /api/ai/context", s.handleContext)

	if s.presence != nil {
		mux.HandleFunc("POST /api/presence/heartbeat", s.handleHeartbeat)
		mux.HandleFunc("GET /api/presence", s.handleOnline)
	}
	if s.exporter != nil {
		mux.HandleFunc("GET /api/audit/export", s.handleAuditExport)
	}
}

// handleAuditExport streams an audit evidence pack. King only: the trail
// contains every actor's activity.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	if !principal.IsKing() {
		WriteForbidden(w, "Only the king can export the audit trail")
		return
	}

	var req audit.ExportRequest
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			WriteBadRequest(w, "Invalid start time (want RFC 3339)")
			return
		}
		req.StartTime = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			WriteBadRequest(w, "Invalid end time (want RFC 3339)")
			return
		}
		req.EndTime = t
	}

	pack, checksum, err := s.exporter.GeneratePack(r.Context(), req)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidTimeRange) {
			WriteBadRequest(w, "start must be before end")
			return
		}
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-pack.zip"`)
	w.Header().Set("X-Pack-Checksum", checksum)
	_, _ = w.Write(pack)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}
	if err := s.presence.Heartbeat(r.Context(), principal.ID); err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": true})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetPrincipal(r.Context()); err != nil {
		WriteUnauthorized(w, "")
		return
	}
	online, err := s.presence.Online(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	if online == nil {
		online = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": online})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, "Missing required fields: username, password")
		return
	}

	user, err := s.users.FindByUsername(r.Context(), req.Username)
	if err != nil || !directory.CheckPassword(user, req.Password) {
		// Same response for unknown user and wrong password.
		WriteUnauthorized(w, "Invalid username or password")
		return
	}
	switch user.Status {
	case directory.UserBanned:
		WriteForbidden(w, "Account is banned")
		return
	case directory.UserPending:
		WriteForbidden(w, "Account is awaiting approval")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	_ = s.audit.Record(r.Context(), audit.EventAccess, "login", "user/"+user.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, "Missing required fields: username, password")
		return
	}

	user, err := s.users.Create(r.Context(), req.Username, req.Password, directory.RoleViewer)
	if err != nil {
		if errors.Is(err, directory.ErrUsernameTaken) {
			WriteConflict(w, "Username already taken")
			return
		}
		WriteInternal(w, err)
		return
	}

	_ = s.audit.Record(r.Context(), audit.EventMutation, "signup", "user/"+user.ID, nil)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "Signup received; an access request is awaiting review",
	})
}

type executeRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	UserID string         `json:"userId"`
}

// handleExecute is the AI action entrypoint. The caller's role decides the
// path through the gate: kings dispatch gated actions immediately, everyone
// else gets a PendingReceipt.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Action == "" {
		WriteBadRequest(w, "Missing required field: action")
		return
	}

	actorID := req.UserID
	if actorID == "" {
		actorID = principal.ID
	}

	result, err := s.core.ExecuteAction(r.Context(), governance.ActionKind(req.Action), req.Params, actorID, principal.IsKing())
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}

	if receipt, ok := result.(*governance.PendingReceipt); ok {
		writeJSON(w, http.StatusAccepted, receipt)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireReviewer(w, r); !ok {
		return
	}

	reviews, err := s.core.ListPendingChanges(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingChanges": reviews})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireKing(w, r)
	if !ok {
		return
	}
	changeID := r.PathValue("id")

	if err := s.core.Approve(r.Context(), changeID, principal.ID); err != nil {
		s.writeLifecycleError(w, r, err)
		return
	}

	// ?execute=true approves and applies in one request.
	if r.URL.Query().Get("execute") == "true" {
		result, err := s.core.ExecuteApprovedChange(r.Context(), changeID)
		if err != nil {
			s.writeActionError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"approved": true, "executed": true, "result": result})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"approved": true})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.requireKing(w, r)
	if !ok {
		return
	}

	if err := s.core.Reject(r.Context(), r.PathValue("id"), principal.ID); err != nil {
		s.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rejected": true})
}

func (s *Server) handleExecuteChange(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireKing(w, r); !ok {
		return
	}

	result, err := s.core.ExecuteApprovedChange(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeActionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executed": true, "result": result})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetPrincipal(r.Context()); err != nil {
		WriteUnauthorized(w, "")
		return
	}
	writeJSON(w, http.StatusOK, s.core.Capabilities())
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetPrincipal(r.Context()); err != nil {
		WriteUnauthorized(w, "")
		return
	}

	aggregate, err := s.core.FullContext(r.Context())
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregate)
}

// requireReviewer enforces that the caller may see the pending change queue.
func (s *Server) requireReviewer(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return nil, false
	}
	if !principal.CanReviewChanges() {
		WriteForbidden(w, "Only king, admin, or support can view pending changes")
		return nil, false
	}
	return principal, true
}

// requireKing enforces that only the king disposes of pending changes. Admin
// and support see the queue but cannot clear it: a reviewer who could approve
// a change they queued themselves would make the gate pointless.
func (s *Server) requireKing(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return nil, false
	}
	if !principal.IsKing() {
		WriteForbidden(w, "Only the king can approve, reject, or execute changes")
		return nil, false
	}
	return principal, true
}

// writeActionError maps action gate and dispatch errors to HTTP statuses.
func (s *Server) writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *governance.UnknownActionError
	var invalid *governance.InvalidParamsError
	switch {
	case errors.As(err, &unknown):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", unknown.Error())
	case errors.As(err, &invalid):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", invalid.Error())
	case errors.Is(err, governance.ErrIntegrationNotConfigured):
		WriteErrorR(w, r, http.StatusConflict, "Conflict", "GitHub integration not configured")
	case errors.Is(err, governance.ErrChangeNotFound):
		WriteNotFound(w, "Pending change not found")
	case errors.Is(err, governance.ErrNotApproved):
		WriteConflict(w, "Change is not approved")
	case errors.Is(err, governance.ErrAlreadyExecuted):
		WriteConflict(w, "Change was already executed")
	default:
		WriteInternal(w, err)
	}
}

// writeLifecycleError maps review lifecycle errors to HTTP statuses.
func (s *Server) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, governance.ErrChangeNotFound):
		WriteNotFound(w, "Pending change not found")
	case errors.Is(err, governance.ErrAlreadyReviewed):
		WriteConflict(w, "Change was already reviewed")
	default:
		WriteInternal(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package server exposes a skill collection as an HTTP registry that
// sources.HTTPSource clients can list and fetch from.
package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jingkaihe/skillkit/pkg/archive"
	"github.com/jingkaihe/skillkit/pkg/installer"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/pkg/errors"
)

const shutdownTimeout = 30 * time.Second

// Catalog supplies the skills being served. It is consulted on every
// request so edits on disk show up without a restart.
type Catalog interface {
	Collection(ctx context.Context) (*skills.Collection, error)
}

// Config holds the listen address and optional bearer token.
type Config struct {
	Host  string
	Port  int
	Token string
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server is the registry HTTP server.
type Server struct {
	router  *mux.Router
	catalog Catalog
	config  Config
}

// SkillResponse is the body of GET /v1/skills/{name}.
type SkillResponse struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Metadata    skills.Metadata    `json:"metadata"`
	Content     string             `json:"content"`
	References  []ReferenceSummary `json:"references"`
}

// ReferenceSummary describes one reference document of a skill.
type ReferenceSummary struct {
	Path   string `json:"path"`
	Title  string `json:"title"`
	Linked bool   `json:"linked"`
	Exists bool   `json:"exists"`
}

// New creates a registry server over catalog.
func New(catalog Catalog, config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:  mux.NewRouter(),
		catalog: catalog,
		config:  config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{name}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/skills/{name}/archive", s.handleArchive).Methods("GET")
	api.HandleFunc("/skills/{name}/references/{path:.+}", s.handleReference).Methods("GET")
	api.Use(s.authMiddleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "not found")
	})
	s.router.Use(s.loggingMiddleware)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.config.Token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="skillkit"`)
			writeErrorResponse(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, map[string]any{"status": "ok"})
}

// handleListSkills handles GET /v1/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.Collection(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load skills", err)
		return
	}
	writeJSONResponse(w, map[string]any{"skills": sources.EntriesFor(c.All())})
}

// handleGetSkill handles GET /v1/skills/{name}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.lookup(w, r)
	if !ok {
		return
	}

	resp := SkillResponse{
		Name:        skill.Name,
		Description: skill.Description,
		Metadata:    skill.Metadata,
		Content:     skill.Content,
		References:  make([]ReferenceSummary, 0, len(skill.References)),
	}
	for _, ref := range skill.References {
		resp.References = append(resp.References, ReferenceSummary{
			Path:   ref.Path,
			Title:  ref.Title,
			Linked: ref.Linked,
			Exists: ref.Exists,
		})
	}
	writeJSONResponse(w, resp)
}

// handleArchive handles GET /v1/skills/{name}/archive
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := archive.Pack(skill.Directory, &buf); err != nil {
		s.internalError(w, r, "failed to pack skill", err)
		return
	}
	digest, _, err := installer.DigestDir(skill.Directory)
	if err != nil {
		s.internalError(w, r, "failed to digest skill", err)
		return
	}

	w.Header().Set("Content-Type", archive.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", skill.Name+".tar.gz"))
	w.Header().Set(sources.HeaderDigest, digest)
	if skill.Metadata.Version != "" {
		w.Header().Set(sources.HeaderVersion, skill.Metadata.Version)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.G(r.Context()).WithError(err).Warn("failed to write archive")
	}
}

// handleReference handles GET /v1/skills/{name}/references/{path}
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	skill, ok := s.lookup(w, r)
	if !ok {
		return
	}

	ref := mux.Vars(r)["path"]
	content, err := skills.ReadReference(skill, ref)
	if err != nil && !strings.HasPrefix(ref, skills.ReferencesDir+"/") {
		content, err = skills.ReadReference(skill, skills.ReferencesDir+"/"+ref)
	}
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*skills.Skill, bool) {
	c, err := s.catalog.Collection(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to load skills", err)
		return nil, false
	}

	name := mux.Vars(r)["name"]
	skill, err := c.Get(name)
	if err != nil {
		if skills.IsNotFound(err) {
			writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("skill '%s' not found", name))
			return nil, false
		}
		s.internalError(w, r, "failed to load skill", err)
		return nil, false
	}
	return skill, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logger.G(r.Context()).WithError(err).Error(message)
	writeErrorResponse(w, http.StatusInternalServerError, message)
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	})
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.G(ctx).WithField("addr", ln.Addr().String()).Info("registry server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "registry server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Wrap(srv.Shutdown(shutdownCtx), "failed to shut down registry server")
}

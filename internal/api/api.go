// Package api provides HTTP handlers and the main API server for the
// medical intake engine.
//
// It exposes RESTful session endpoints: create an intake session, send
// patient messages, inspect collected state, and end the session. One
// dialogue manager is kept per session; the server serializes access to it.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sean-bit813/medical-LLM-system/internal/dialogue"
	"github.com/sean-bit813/medical-LLM-system/internal/genai"
	"github.com/sean-bit813/medical-LLM-system/internal/knowledge"
	"github.com/sean-bit813/medical-LLM-system/internal/memory"
	"github.com/sean-bit813/medical-LLM-system/internal/models"
	"github.com/sean-bit813/medical-LLM-system/internal/nlu"
	"github.com/sean-bit813/medical-LLM-system/internal/store"
)

// DefaultAddr is the default API server listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for API server construction.
type Opts struct {
	addr string
}

// Option defines a configuration option for API server construction.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.addr = addr }
}

// sessionEntry pairs one dialogue manager with the mutex serializing its
// turns. The manager itself is not safe for concurrent use.
type sessionEntry struct {
	mu        sync.Mutex
	patientID string
	mgr       *dialogue.Manager
}

// Server is the intake HTTP API server.
type Server struct {
	addr     string
	gen      dialogue.Generator
	st       store.Store
	know     knowledge.Searcher
	analyzer dialogue.Analyzer
	dlgCfg   dialogue.Config

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewServer creates an API server over the given generator and store.
func NewServer(gen dialogue.Generator, st store.Store, dlgCfg dialogue.Config, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.addr == "" {
		o.addr = DefaultAddr
	}
	return &Server{
		addr:     o.addr,
		gen:      gen,
		st:       st,
		know:     knowledge.NewStoreSearcher(st),
		analyzer: nlu.NewClient(gen),
		dlgCfg:   dlgCfg,
		sessions: make(map[string]*sessionEntry),
	}
}

// Handler returns the server's HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/v1/sessions", s.createSessionHandler)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", s.sendMessageHandler)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.deleteSessionHandler)
	return mux
}

// Run starts the HTTP server and blocks.
func (s *Server) Run() error {
	slog.Info("Intake API listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// newSession registers a fresh dialogue manager for the patient and returns
// its session ID.
func (s *Server) newSession(patientID string) (string, *sessionEntry) {
	cfg := s.dlgCfg
	cfg.PatientID = patientID
	mgr := dialogue.NewManager(cfg, s.gen,
		dialogue.WithNLU(s.analyzer),
		dialogue.WithKnowledge(s.know),
		dialogue.WithMemory(memory.NewManager(s.st)),
	)

	id := uuid.NewString()
	entry := &sessionEntry{patientID: patientID, mgr: mgr}
	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()
	slog.Info("Session created", "sessionID", id, "patientID", patientID)
	return id, entry
}

// session looks up a registered session.
func (s *Server) session(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

// dropSession removes a session from the registry.
func (s *Server) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	slog.Info("Session removed", "sessionID", id)
}

// Run builds the module stack from options and starts the HTTP server. This
// is the single entry point used by the command binary.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option, dlgCfg dialogue.Config) error {
	if err := validateDialogueGraph(); err != nil {
		return err
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize GenAI client: %w", err)
	}

	return NewServer(gen, st, dlgCfg, apiOpts...).Run()
}

// validateDialogueGraph asserts the state graph and the flow registry are
// total before the server accepts traffic. Both are static, so a failure
// here is a programming error worth refusing to start over.
func validateDialogueGraph() error {
	if err := models.ValidateTransitions(); err != nil {
		return fmt.Errorf("invalid dialogue state graph: %w", err)
	}
	if err := dialogue.NewRegistry(dialogue.Deps{}).Validate(); err != nil {
		return fmt.Errorf("invalid flow registry: %w", err)
	}
	return nil
}

// buildStore selects the persistence backend from the configured DSN. No
// DSN means the in-memory store.
func buildStore(opts []store.Option) (store.Store, error) {
	var o store.Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.DSN == "" {
		slog.Info("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(o.DSN) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(o.DSN))
	}
	slog.Info("Using SQLite store", "path", o.DSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(o.DSN))
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"healthledger/core/auth"
	"healthledger/core/ledger"
	"healthledger/core/network"
	"healthledger/core/storage"
)

// BlockStore is the read side of the block archive.
type BlockStore interface {
	Recent(max int) ([]storage.BlockSummary, error)
	Height() (uint64, bool, error)
	Block(index uint64) (ledger.Block, error)
}

// Server exposes the network over HTTP. All /api/v1 routes require a
// bearer token whose subject is the acting participant.
type Server struct {
	ListenAddr string
	NodeName   string

	router  *mux.Router
	net     *network.Network
	authz   *auth.Authorizer
	archive BlockStore
	log     *zap.Logger
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithArchive serves archived block summaries from store.
func WithArchive(store BlockStore) Option {
	return func(s *Server) { s.archive = store }
}

// WithNodeName labels /status responses.
func WithNodeName(name string) Option {
	return func(s *Server) { s.NodeName = name }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

func NewServer(net *network.Network, authz *auth.Authorizer, listenAddr string, opts ...Option) *Server {
	s := &Server{
		ListenAddr: listenAddr,
		router:     mux.NewRouter(),
		net:        net,
		authz:      authz,
		log:        zap.NewNop(),
		started:    time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/health/liveness", s.HandleLiveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/readiness", s.HandleReadiness).Methods(http.MethodGet)
	s.router.HandleFunc("/nodehealth", s.HandleNodeHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.HandleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.HandleVersion).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requireToken)

	api.HandleFunc("/participants", s.handleRegisterParticipant).Methods(http.MethodPost)
	api.HandleFunc("/participants", s.handleListParticipants).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id}", s.handleGetParticipant).Methods(http.MethodGet)
	api.HandleFunc("/participants/{id}", s.handleUpdateParticipant).Methods(http.MethodPatch)

	RegisterMedicalRecordAPI(api, s)

	api.HandleFunc("/patients/{patientID}/emergency", s.handleTriggerEmergency).Methods(http.MethodPost)
	api.HandleFunc("/patients/{patientID}/emergency", s.handleResolveEmergency).Methods(http.MethodDelete)
	api.HandleFunc("/patients/{patientID}/emergency", s.handleListEmergencies).Methods(http.MethodGet)
	api.HandleFunc("/patients/{patientID}/analysis", s.handleAnalysis).Methods(http.MethodPost)

	api.HandleFunc("/ledger/mine", s.handleMine).Methods(http.MethodPost)
	api.HandleFunc("/ledger/verify", s.handleVerify).Methods(http.MethodPost)
	api.HandleFunc("/ledger/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/ledger/blocks", s.handleBlocks).Methods(http.MethodGet)
	api.HandleFunc("/ledger/blocks/{index:[0-9]+}", s.handleGetBlock).Methods(http.MethodGet)
	api.HandleFunc("/ledger/pending", s.handlePending).Methods(http.MethodGet)
	RegisterTxInspectAPI(api, s)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", zap.String("addr", s.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("api server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

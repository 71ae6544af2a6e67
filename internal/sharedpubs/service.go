package sharedpubs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Opener connects a Store for a DSN.
type Opener func(ctx context.Context, dsn string) (*Store, error)

// Service answers shared-publication requests. The database connection is
// opened on the first request and reused while the process lives.
type Service struct {
	secrets  SecretsManagerAPI
	secretID string
	open     Opener
	logger   *slog.Logger

	mu    sync.Mutex
	store *Store
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSecretID overrides DefaultSecretID.
func WithSecretID(id string) ServiceOption {
	return func(s *Service) { s.secretID = id }
}

// WithOpener replaces Open (useful for testing).
func WithOpener(o Opener) ServiceOption {
	return func(s *Service) { s.open = o }
}

// WithLogger sets the service's logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service reading credentials through secrets.
func NewService(secrets SecretsManagerAPI, opts ...ServiceOption) *Service {
	s := &Service{
		secrets:  secrets,
		secretID: DefaultSecretID,
		open:     Open,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle returns the publications shared by req.ID1 and req.ID2.
func (s *Service) Handle(ctx context.Context, req types.SharedPublicationsRequest) ([]types.Publication, error) {
	if req.ID1 == "" || req.ID2 == "" {
		return nil, ErrMissingID
	}
	store, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	pubs, err := store.Shared(ctx, req.ID1, req.ID2)
	if err != nil {
		s.logger.Error("shared publications query failed", "id1", req.ID1, "id2", req.ID2, "error", err)
		return nil, err
	}
	s.logger.Info("shared publications", "id1", req.ID1, "id2", req.ID2, "count", len(pubs))
	return pubs, nil
}

// Close releases the database connection, if one was opened.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		s.store.Close()
		s.store = nil
	}
}

func (s *Service) connect(ctx context.Context) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	creds, err := LoadCredentials(ctx, s.secrets, s.secretID)
	if err != nil {
		return nil, err
	}
	store, err := s.open(ctx, creds.DSN())
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

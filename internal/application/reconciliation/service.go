package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const serviceName = "reconciliation"

// Repositories bundles the ports the service reads and writes through
type Repositories struct {
	Accounts        reconciliation.AccountRepository
	Statements      reconciliation.StatementRepository
	Transactions    reconciliation.TransactionRepository
	Matches         reconciliation.MatchRepository
	Reconciliations reconciliation.ReconciliationRepository
	UnitOfWork      reconciliation.UnitOfWork
}

// Service runs reconciliation sessions and operator actions.
// Each operation loads what it needs once, computes in memory and persists
// the outcome as one batch through the UnitOfWork.
type Service struct {
	accounts        reconciliation.AccountRepository
	statements      reconciliation.StatementRepository
	transactions    reconciliation.TransactionRepository
	matches         reconciliation.MatchRepository
	reconciliations reconciliation.ReconciliationRepository
	uow             reconciliation.UnitOfWork

	session       *reconciliation.ReconciliationSession
	manual        *reconciliation.ManualMatchHandler
	undo          *reconciliation.UndoHandler
	cache         reconciliation.SuggestionCache
	publisher     shared.EventPublisher
	metrics       Metrics
	logger        *zap.Logger
	validate      *validator.Validate
	defaults      reconciliation.ReconciliationSettings
	windowPadding int
	now           func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithEngine replaces the default decision engine
func WithEngine(engine *reconciliation.MatchDecisionEngine) Option {
	return func(s *Service) {
		if engine == nil {
			return
		}
		s.session = reconciliation.NewReconciliationSession(engine)
		s.manual = reconciliation.NewManualMatchHandler(engine.Scorer())
	}
}

// WithSuggestionCache sets the reviewer suggestion cache
func WithSuggestionCache(cache reconciliation.SuggestionCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithEventPublisher sets the domain event publisher
func WithEventPublisher(publisher shared.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultSettings sets the settings used when a command carries none
func WithDefaultSettings(settings reconciliation.ReconciliationSettings) Option {
	return func(s *Service) {
		s.defaults = settings
	}
}

// WithWindowPadding widens candidate loading beyond the date tolerance
func WithWindowPadding(days int) Option {
	return func(s *Service) {
		if days >= 0 {
			s.windowPadding = days
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a reconciliation service
func NewService(repos Repositories, opts ...Option) *Service {
	s := &Service{
		accounts:        repos.Accounts,
		statements:      repos.Statements,
		transactions:    repos.Transactions,
		matches:         repos.Matches,
		reconciliations: repos.Reconciliations,
		uow:             repos.UnitOfWork,
		session:         reconciliation.NewReconciliationSession(nil),
		manual:          reconciliation.NewManualMatchHandler(nil),
		undo:            reconciliation.NewUndoHandler(),
		cache:           nopCache{},
		metrics:         nopMetrics{},
		logger:          zap.NewNop(),
		validate:        newValidator(),
		defaults:        reconciliation.DefaultSettings(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named(serviceName)
	return s
}

// DefaultSettings returns the settings applied when a command carries none
func (s *Service) DefaultSettings() reconciliation.ReconciliationSettings {
	return s.defaults
}

// GetReconciliation returns a finalized run
func (s *Service) GetReconciliation(ctx context.Context, id uuid.UUID) (*ReconciliationResponse, error) {
	rec, err := s.reconciliations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToReconciliationResponse(rec), nil
}

// ListMatches returns the match history of a statement, oldest first
func (s *Service) ListMatches(ctx context.Context, query ListMatchesQuery) ([]MatchResponse, error) {
	if err := s.validateCommand(query); err != nil {
		return nil, err
	}
	matches, err := s.matches.FindByStatement(ctx, mustParseID(query.StatementID))
	if err != nil {
		return nil, err
	}
	if query.ActiveOnly {
		matches = reconciliation.ActiveMatches(matches)
	}
	return ToMatchResponses(matches), nil
}

// log returns a context logger carrying the service logger
func (s *Service) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, s.logger)
}

// publishEvents hands events to the publisher. A publish failure is logged
// and does not undo the committed write.
func (s *Service) publishEvents(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.log(ctx).Error("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// invalidateSuggestions drops cached suggestions of an account
func (s *Service) invalidateSuggestions(ctx context.Context, accountID uuid.UUID) {
	if err := s.cache.InvalidateAccount(ctx, accountID); err != nil {
		s.log(ctx).Warn("Failed to invalidate suggestion cache",
			zap.String("account_id", accountID.String()),
			zap.Error(err),
		)
	}
}

// loadStatementLine loads a line through its statement so that status
// changes on the line are visible to the statement rollup
func (s *Service) loadStatementLine(ctx context.Context, lineID uuid.UUID) (*reconciliation.BankStatement, *reconciliation.BankStatementLine, error) {
	found, err := s.statements.FindLineByID(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}
	stmt, err := s.statements.FindByID(ctx, found.StatementID)
	if err != nil {
		return nil, nil, err
	}
	line, ok := stmt.Line(lineID)
	if !ok {
		return nil, nil, shared.NewNotFoundError(fmt.Sprintf("statement line %s not found", lineID))
	}
	return stmt, line, nil
}

// outcomeOf maps an operation error to a metric outcome label
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case shared.IsConflict(err):
		return OutcomeConflict
	case shared.IsValidation(err), shared.IsNotFound(err), isInvalidState(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func isInvalidState(err error) bool {
	return errors.Is(err, shared.ErrInvalidState)
}

type nopCache struct{}

func (nopCache) Get(context.Context, uuid.UUID, uuid.UUID) ([]reconciliation.MatchSuggestion, bool, error) {
	return nil, false, nil
}

func (nopCache) Set(context.Context, uuid.UUID, uuid.UUID, []reconciliation.MatchSuggestion) error {
	return nil
}

func (nopCache) InvalidateAccount(context.Context, uuid.UUID) error {
	return nil
}

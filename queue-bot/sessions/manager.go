package sessions

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fullwork/queue-bot/models"
)

const (
	CodeLength = 6
	DefaultTTL = 120 * time.Second
)

var (
	ErrNoActiveSession    = errors.New("код не найден или истек")
	ErrSessionAlreadyOpen = errors.New("у пользователя уже есть активный код")
)

type Ledger interface {
	Adjust(ctx context.Context, userID int64, delta float64) (*models.User, error)
}

type Numbers interface {
	MoveToWork(ctx context.Context, rec *models.NumberRecord) (*models.NumberRecord, error)
	RemoveFromQueue(ctx context.Context, number string, userID int64) (bool, error)
}

// ExpiryNotifier tells the owner their code ran out. It is called after the
// session is gone and the record has left the queue.
type ExpiryNotifier interface {
	CodeExpired(ctx context.Context, s *models.CodeSession)
}

type Config struct {
	TTL      time.Duration
	Increase float64
	Decrease float64
}

type entry struct {
	session models.CodeSession
	timer   *time.Timer
}

// Manager owns the code sessions, at most one per user. A session ends in
// exactly one of Accept, Skip or expiry. Each expiry timer is bound to the
// session id it was armed for, so a late timer finding no session, or a newer
// one, does nothing.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*entry

	cfg      Config
	ledger   Ledger
	numbers  Numbers
	notifier ExpiryNotifier
	log      *zap.Logger

	newCode func() (string, error)
}

func NewManager(cfg Config, ledger Ledger, numbers Numbers, log *zap.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Manager{
		sessions: make(map[int64]*entry),
		cfg:      cfg,
		ledger:   ledger,
		numbers:  numbers,
		log:      log.Named("sessions"),
		newCode:  GenerateCode,
	}
}

// SetNotifier wires the expiry callback. The handler that renders the notice
// is built after the manager, hence the setter.
func (m *Manager) SetNotifier(n ExpiryNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Open issues a code to the owner of rec and arms the expiry timer.
func (m *Manager) Open(userID int64, rec *models.NumberRecord) (*models.CodeSession, error) {
	code, err := m.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; ok {
		return nil, ErrSessionAlreadyOpen
	}

	e := &entry{session: models.CodeSession{
		ID:        uuid.New(),
		UserID:    userID,
		Number:    rec.Number,
		Code:      code,
		CreatedAt: time.Now(),
		Record:    rec.Clone(),
	}}
	id := e.session.ID
	e.timer = time.AfterFunc(m.cfg.TTL, func() {
		m.Expire(context.Background(), userID, id)
	})
	m.sessions[userID] = e

	m.log.Info("code session opened",
		zap.Int64("user_id", userID),
		zap.String("number", rec.Number),
		zap.Stringer("session_id", id),
	)
	return copySession(&e.session), nil
}

// AttachMessage remembers the outbound code message so expiry can retract it.
func (m *Manager) AttachMessage(userID int64, id uuid.UUID, messageID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok || e.session.ID != id {
		return false
	}
	e.session.MessageID = messageID
	return true
}

// Cancel drops a session whose code never reached the user.
func (m *Manager) Cancel(userID int64, id uuid.UUID) bool {
	_, ok := m.claim(userID, &id)
	return ok
}

// Active returns the user's open session.
func (m *Manager) Active(userID int64) (*models.CodeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return copySession(&e.session), true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Accept closes the session as entered: the record moves to work and the
// owner earns the configured increase.
func (m *Manager) Accept(ctx context.Context, userID int64) (*models.CodeSession, error) {
	s, ok := m.claim(userID, nil)
	if !ok {
		return nil, ErrNoActiveSession
	}

	if _, err := m.numbers.MoveToWork(ctx, s.Record); err != nil {
		return s, fmt.Errorf("move %s to work: %w", s.Number, err)
	}
	if _, err := m.ledger.Adjust(ctx, userID, m.cfg.Increase); err != nil {
		return s, fmt.Errorf("raise reputation: %w", err)
	}

	m.log.Info("code accepted", zap.Int64("user_id", userID), zap.String("number", s.Number))
	return s, nil
}

// Skip closes the session as refused: the record leaves the queue and the
// owner loses the configured decrease.
func (m *Manager) Skip(ctx context.Context, userID int64) (*models.CodeSession, error) {
	s, ok := m.claim(userID, nil)
	if !ok {
		return nil, ErrNoActiveSession
	}

	if _, err := m.ledger.Adjust(ctx, userID, -m.cfg.Decrease); err != nil {
		return s, fmt.Errorf("lower reputation: %w", err)
	}
	if _, err := m.numbers.RemoveFromQueue(ctx, s.Number, userID); err != nil {
		return s, fmt.Errorf("remove %s from queue: %w", s.Number, err)
	}

	m.log.Info("code skipped", zap.Int64("user_id", userID), zap.String("number", s.Number))
	return s, nil
}

// Expire ends session id if it is still the user's open session. It reports
// whether anything expired; a session already accepted or skipped is left alone.
func (m *Manager) Expire(ctx context.Context, userID int64, id uuid.UUID) bool {
	s, ok := m.claim(userID, &id)
	if !ok {
		m.log.Debug("expiry after session closed", zap.Int64("user_id", userID), zap.Stringer("session_id", id))
		return false
	}

	if _, err := m.numbers.RemoveFromQueue(ctx, s.Number, userID); err != nil {
		m.log.Error("remove expired number from queue",
			zap.Int64("user_id", userID),
			zap.String("number", s.Number),
			zap.Error(err),
		)
	}

	m.mu.Lock()
	notifier := m.notifier
	m.mu.Unlock()
	if notifier != nil {
		notifier.CodeExpired(ctx, s)
	}

	m.log.Info("code expired", zap.Int64("user_id", userID), zap.String("number", s.Number))
	return true
}

// Close stops all pending timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.sessions {
		e.timer.Stop()
	}
}

// claim removes and returns the user's session, provided it matches id when
// id is set. Whoever claims a session owns its outcome.
func (m *Manager) claim(userID int64, id *uuid.UUID) (*models.CodeSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok || (id != nil && e.session.ID != *id) {
		return nil, false
	}
	delete(m.sessions, userID)
	e.timer.Stop()
	return copySession(&e.session), true
}

func copySession(s *models.CodeSession) *models.CodeSession {
	c := *s
	c.Record = s.Record.Clone()
	return &c
}

// GenerateCode returns a random zero-padded numeric code.
func GenerateCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(CodeLength), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

package settings

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/models"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/payload"
)

// DefaultLoginEmailKey is the settings key the login email is stored under.
const DefaultLoginEmailKey = "login_email"

// Identifier is the part of the analytics client the login glue needs.
type Identifier interface {
	Identify(ctx context.Context, userID string, traits *models.Traits) error
}

// LoginListener forwards a newly entered login email to analytics as an
// identify call and persists it.
type LoginListener struct {
	Analytics Identifier
	Store     Store
	Key       string
	Metrics   observability.MetricsRegistry
	Logger    *zap.Logger
}

// NewLoginListener wires a listener with the default key.
func NewLoginListener(analytics Identifier, store Store, metrics observability.MetricsRegistry, logger *zap.Logger) *LoginListener {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &LoginListener{
		Analytics: analytics,
		Store:     store,
		Key:       DefaultLoginEmailKey,
		Metrics:   metrics,
		Logger:    logger,
	}
}

func (l *LoginListener) key() string {
	if l.Key == "" {
		return DefaultLoginEmailKey
	}
	return l.Key
}

// OnLoginEmailChanged identifies the user by email and stores the email.
// It reports whether the change is accepted; only an email that cannot
// identify a user is rejected, and then nothing is stored.
func (l *LoginListener) OnLoginEmailChanged(ctx context.Context, email string) bool {
	err := l.Analytics.Identify(ctx, email, models.NewTraits().PutEmail(email))
	var verr *payload.ValidationError
	if errors.As(err, &verr) {
		l.Logger.Warn("login email rejected", zap.Error(err))
		return false
	}
	if err != nil {
		// delivery failures do not block saving the preference
		l.Logger.Error("identify login email", zap.Error(err))
	}

	key := l.key()
	if err := l.Store.PutString(ctx, key, email); err != nil {
		l.Metrics.IncrementSettingsWrites("error")
		l.Logger.Error("persist login email", zap.String("key", key), zap.Error(err))
		return true
	}
	l.Metrics.IncrementSettingsWrites("ok")
	return true
}

// LoginEmail returns the stored login email, or "" when none was saved.
func (l *LoginListener) LoginEmail(ctx context.Context) (string, error) {
	key := l.key()
	v, err := l.Store.GetString(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

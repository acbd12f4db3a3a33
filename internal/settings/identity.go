package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickwarner/streamlytics/internal/models"
)

// AnonymousIDKey stores the anonymous id across restarts.
const AnonymousIDKey = "anonymous_id"

// LoadTraits returns traits seeded with the persisted anonymous id. A new id
// is generated and stored when none exists yet.
func LoadTraits(ctx context.Context, store Store) (*models.Traits, error) {
	id, err := store.GetString(ctx, AnonymousIDKey)
	switch {
	case err == nil && id != "":
		return models.NewTraits().PutAnonymousID(id), nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("load anonymous id: %w", err)
	}

	traits := models.NewAnonymousTraits()
	if err := store.PutString(ctx, AnonymousIDKey, traits.AnonymousID()); err != nil {
		return nil, fmt.Errorf("store anonymous id: %w", err)
	}
	return traits, nil
}

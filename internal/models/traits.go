package models

import (
	"time"

	"github.com/google/uuid"
)

// Trait keys understood by the analytics backend.
const (
	TraitAnonymousID = "anonymousId"
	TraitUserID      = "userId"
	TraitEmail       = "email"
	TraitName        = "name"
	TraitUsername    = "username"
	TraitPhone       = "phone"
	TraitCreatedAt   = "createdAt"
)

// Traits describes the current user. The traits held by a client always
// carry an anonymous id so events can be attributed before identify.
type Traits struct {
	*ValueMap
}

// NewTraits returns empty traits, e.g. for passing to Identify.
func NewTraits() *Traits {
	return &Traits{NewValueMap()}
}

// NewAnonymousTraits returns traits seeded with a random anonymous id.
func NewAnonymousTraits() *Traits {
	return NewTraits().PutAnonymousID(uuid.NewString())
}

// TraitsFrom wraps an existing map. It is used when reading traits back
// out of a context.
func TraitsFrom(m *ValueMap) *Traits {
	if m == nil {
		return nil
	}
	return &Traits{m}
}

func (t *Traits) valueMap() *ValueMap {
	if t == nil {
		return nil
	}
	return t.ValueMap
}

// PutValue sets an arbitrary trait.
func (t *Traits) PutValue(key string, value any) *Traits {
	t.ValueMap.PutValue(key, value)
	return t
}

func (t *Traits) PutAnonymousID(id string) *Traits { return t.PutValue(TraitAnonymousID, id) }
func (t *Traits) PutUserID(id string) *Traits      { return t.PutValue(TraitUserID, id) }
func (t *Traits) PutEmail(email string) *Traits    { return t.PutValue(TraitEmail, email) }
func (t *Traits) PutName(name string) *Traits      { return t.PutValue(TraitName, name) }
func (t *Traits) PutUsername(name string) *Traits  { return t.PutValue(TraitUsername, name) }
func (t *Traits) PutPhone(phone string) *Traits    { return t.PutValue(TraitPhone, phone) }

// PutCreatedAt records when the account was created, ISO-8601 formatted.
func (t *Traits) PutCreatedAt(at time.Time) *Traits {
	return t.PutValue(TraitCreatedAt, at.UTC().Format(time.RFC3339Nano))
}

func (t *Traits) AnonymousID() string { return t.String(TraitAnonymousID) }
func (t *Traits) UserID() string      { return t.String(TraitUserID) }
func (t *Traits) Email() string       { return t.String(TraitEmail) }

// CurrentID returns the user id, or the anonymous id before identify.
func (t *Traits) CurrentID() string {
	if id := t.UserID(); id != "" {
		return id
	}
	return t.AnonymousID()
}

// Merge returns a writable copy of t with every key of other applied on top.
func (t *Traits) Merge(other *Traits) *Traits {
	var base *ValueMap
	if t != nil {
		base = t.ValueMap
	}
	out := &Traits{base.Copy()}
	if out.ValueMap == nil {
		out.ValueMap = NewValueMap()
	}
	if other == nil || other.ValueMap == nil {
		return out
	}
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		out.PutValue(k, v)
	}
	return out
}

// UnmodifiableCopy returns read-only traits detached from t.
func (t *Traits) UnmodifiableCopy() *Traits {
	if t == nil {
		return nil
	}
	return &Traits{t.ValueMap.UnmodifiableCopy()}
}

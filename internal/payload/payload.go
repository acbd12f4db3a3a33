// Package payload builds validated, immutable analytics event records.
//
// A Builder collects fields and validates them in Build; once Build has
// succeeded the builder is frozen and always returns the same Payload.
package payload

import (
	"time"

	"github.com/google/uuid"

	"github.com/patrickwarner/streamlytics/internal/models"
)

// Kind is the payload type sent to the backend.
type Kind string

const (
	KindTrack    Kind = "track"
	KindIdentify Kind = "identify"
	KindScreen   Kind = "screen"
)

// Wire keys of a serialized payload.
const (
	TypeKey        = "type"
	MessageIDKey   = "messageId"
	TimestampKey   = "timestamp"
	EventKey       = "event"
	NameKey        = "name"
	UserIDKey      = "userId"
	AnonymousIDKey = "anonymousId"
	ProfileIDKey   = "profileId"
	SessionIDKey   = "sessionId"
	PropertiesKey  = "properties"
	TraitsKey      = "traits"
	TargetKey      = "target"
)

// Payload is one outgoing event. All accessors return values that cannot
// be used to modify the payload.
type Payload struct {
	kind        Kind
	messageID   string
	timestamp   time.Time
	event       string
	userID      string
	anonymousID string
	profileID   *string
	sessionID   *string
	properties  *models.ValueMap
	traits      *models.Traits
	target      *Item
}

func (p *Payload) Kind() Kind                   { return p.kind }
func (p *Payload) MessageID() string            { return p.messageID }
func (p *Payload) Timestamp() time.Time         { return p.timestamp }
func (p *Payload) Event() string                { return p.event }
func (p *Payload) UserID() string               { return p.userID }
func (p *Payload) AnonymousID() string          { return p.anonymousID }
func (p *Payload) Target() *Item                { return p.target }
func (p *Payload) Traits() *models.Traits       { return p.traits }
func (p *Payload) Properties() *models.ValueMap { return p.properties }

// ProfileID returns the profile id and whether one was set.
func (p *Payload) ProfileID() (string, bool) {
	if p.profileID == nil {
		return "", false
	}
	return *p.profileID, true
}

// SessionID returns the session id and whether one was set.
func (p *Payload) SessionID() (string, bool) {
	if p.sessionID == nil {
		return "", false
	}
	return *p.sessionID, true
}

// ToValueMap renders the payload with its wire keys.
func (p *Payload) ToValueMap() *models.ValueMap {
	m := models.NewValueMap().
		PutValue(TypeKey, string(p.kind)).
		PutValue(MessageIDKey, p.messageID).
		PutValue(TimestampKey, p.timestamp.Format(time.RFC3339Nano))
	switch p.kind {
	case KindTrack:
		m.PutValue(EventKey, p.event)
	case KindScreen:
		m.PutValue(NameKey, p.event)
	}
	if p.userID != "" {
		m.PutValue(UserIDKey, p.userID)
	}
	if p.anonymousID != "" {
		m.PutValue(AnonymousIDKey, p.anonymousID)
	}
	m.PutValue(ProfileIDKey, nullable(p.profileID))
	m.PutValue(SessionIDKey, nullable(p.sessionID))
	m.PutValue(PropertiesKey, p.properties)
	if p.traits != nil {
		m.PutValue(TraitsKey, p.traits.ValueMap)
	}
	if p.target != nil {
		m.PutValue(TargetKey, p.target.valueMap())
	}
	return m
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// MarshalJSON emits the payload with its wire keys in a stable order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	return p.ToValueMap().MarshalJSON()
}

// Builder assembles a Payload. Setter misuse is recorded and reported by
// Build, so a chain of setters never has to be interrupted.
type Builder struct {
	kind        Kind
	event       string
	userID      string
	anonymousID string
	profileID   *string
	sessionID   *string
	timestamp   time.Time
	properties  *models.ValueMap
	traits      *models.Traits
	target      *Item
	err         error
	built       *Payload
	now         func() time.Time
}

// NewBuilder returns a builder for kind.
func NewBuilder(kind Kind) *Builder {
	return &Builder{kind: kind, now: time.Now}
}

// NewTrack starts a track payload for event.
func NewTrack(event string) *Builder {
	return NewBuilder(KindTrack).Event(event)
}

// NewScreen starts a screen payload for the named screen.
func NewScreen(name string) *Builder {
	return NewBuilder(KindScreen).Event(name)
}

// NewIdentify starts an identify payload for userID.
func NewIdentify(userID string) *Builder {
	return NewBuilder(KindIdentify).UserID(userID)
}

// Kind returns the kind being built.
func (b *Builder) Kind() Kind { return b.kind }

func (b *Builder) frozen() bool { return b.built != nil }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) eventField() string {
	if b.kind == KindScreen {
		return NameKey
	}
	return EventKey
}

// Event sets the event (or screen) name. An empty name is rejected.
func (b *Builder) Event(name string) *Builder {
	if b.frozen() {
		return b
	}
	if name == "" {
		b.fail(nullOrEmpty(b.eventField()))
		return b
	}
	b.event = name
	return b
}

func (b *Builder) UserID(id string) *Builder {
	if !b.frozen() {
		b.userID = id
	}
	return b
}

func (b *Builder) AnonymousID(id string) *Builder {
	if !b.frozen() {
		b.anonymousID = id
	}
	return b
}

// IdentityDefaults fills the user and anonymous ids that were not set explicitly.
func (b *Builder) IdentityDefaults(userID, anonymousID string) *Builder {
	if b.frozen() {
		return b
	}
	if b.userID == "" {
		b.userID = userID
	}
	if b.anonymousID == "" {
		b.anonymousID = anonymousID
	}
	return b
}

func (b *Builder) ProfileID(id string) *Builder {
	if !b.frozen() {
		b.profileID = &id
	}
	return b
}

func (b *Builder) SessionID(id string) *Builder {
	if !b.frozen() {
		b.sessionID = &id
	}
	return b
}

// Timestamp overrides the creation time.
func (b *Builder) Timestamp(ts time.Time) *Builder {
	if !b.frozen() {
		b.timestamp = ts
	}
	return b
}

// Properties sets free-form properties. A nil map is rejected; an empty
// map is valid. The map is copied.
func (b *Builder) Properties(props map[string]any) *Builder {
	if b.frozen() {
		return b
	}
	if props == nil {
		b.fail(isNull(PropertiesKey))
		return b
	}
	b.properties = models.ValueMapFrom(props)
	return b
}

// PropertiesMap is Properties for an ordered map.
func (b *Builder) PropertiesMap(props *models.ValueMap) *Builder {
	if b.frozen() {
		return b
	}
	if props == nil {
		b.fail(isNull(PropertiesKey))
		return b
	}
	b.properties = props.Copy()
	return b
}

// Traits attaches identity traits (identify payloads).
func (b *Builder) Traits(traits *models.Traits) *Builder {
	if b.frozen() {
		return b
	}
	if traits == nil || traits.ValueMap == nil {
		b.fail(isNull(TraitsKey))
		return b
	}
	b.traits = traits.UnmodifiableCopy()
	return b
}

// Target sets the item the event is about. nil clears it.
func (b *Builder) Target(item *Item) *Builder {
	if !b.frozen() {
		b.target = item
	}
	return b
}

// TargetFrom builds ib and uses the result as target; a build error is
// reported by Build.
func (b *Builder) TargetFrom(ib *ItemBuilder) *Builder {
	if b.frozen() {
		return b
	}
	item, err := ib.Build()
	if err != nil {
		b.fail(err)
		return b
	}
	b.target = item
	return b
}

// Build validates the builder and returns the payload. After a successful
// Build the builder is frozen and further calls return the same payload.
func (b *Builder) Build() (*Payload, error) {
	if b.built != nil {
		return b.built, nil
	}
	if b.err != nil {
		return nil, b.err
	}
	switch b.kind {
	case KindTrack, KindScreen:
		if b.event == "" {
			return nil, nullOrEmpty(b.eventField())
		}
	case KindIdentify:
		if b.userID == "" {
			return nil, nullOrEmpty(UserIDKey)
		}
	default:
		return nil, &ValidationError{Field: TypeKey, Message: "unknown payload type " + string(b.kind)}
	}

	ts := b.timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	props := b.properties
	if props == nil {
		props = models.NewValueMap()
	}

	p := &Payload{
		kind:        b.kind,
		messageID:   uuid.NewString(),
		timestamp:   ts.UTC(),
		event:       b.event,
		userID:      b.userID,
		anonymousID: b.anonymousID,
		profileID:   b.profileID,
		sessionID:   b.sessionID,
		properties:  props.UnmodifiableCopy(),
		traits:      b.traits,
		target:      b.target,
	}
	b.built = p
	return p, nil
}

package payload

import (
	"github.com/patrickwarner/streamlytics/internal/models"
)

// Item keys in the serialized target.
const (
	ItemIDKey         = "itemId"
	ItemTypeKey       = "itemType"
	ItemPropertiesKey = "properties"
)

// Item is the entity an event is about, e.g. a specific video.
type Item struct {
	id         string
	itemType   string
	properties *models.ValueMap
}

func (i *Item) ID() string   { return i.id }
func (i *Item) Type() string { return i.itemType }

// Properties returns a read-only view of the item properties.
func (i *Item) Properties() *models.ValueMap { return i.properties }

// MarshalJSON emits {"itemId","itemType","properties"}.
func (i *Item) MarshalJSON() ([]byte, error) {
	return i.valueMap().MarshalJSON()
}

func (i *Item) valueMap() *models.ValueMap {
	m := models.NewValueMap().
		PutValue(ItemIDKey, i.id).
		PutValue(ItemTypeKey, i.itemType)
	if i.properties != nil {
		m.PutValue(ItemPropertiesKey, i.properties)
	}
	return m
}

// ItemBuilder assembles an Item.
type ItemBuilder struct {
	id         string
	itemType   string
	properties *models.ValueMap
	err        error
}

// NewItemBuilder returns an empty ItemBuilder.
func NewItemBuilder() *ItemBuilder {
	return &ItemBuilder{}
}

func (b *ItemBuilder) ItemID(id string) *ItemBuilder {
	b.id = id
	return b
}

func (b *ItemBuilder) ItemType(t string) *ItemBuilder {
	b.itemType = t
	return b
}

// Properties sets the item properties. A nil map is rejected at Build.
func (b *ItemBuilder) Properties(props map[string]any) *ItemBuilder {
	if props == nil {
		b.fail(isNull("properties"))
		return b
	}
	b.properties = models.ValueMapFrom(props)
	return b
}

// PropertiesMap is Properties for an ordered map.
func (b *ItemBuilder) PropertiesMap(props *models.ValueMap) *ItemBuilder {
	if props == nil {
		b.fail(isNull("properties"))
		return b
	}
	b.properties = props.Copy()
	return b
}

func (b *ItemBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates the builder and returns an immutable Item.
func (b *ItemBuilder) Build() (*Item, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.id == "" {
		return nil, nullOrEmpty(ItemIDKey)
	}
	item := &Item{id: b.id, itemType: b.itemType}
	if b.properties != nil {
		item.properties = b.properties.UnmodifiableCopy()
	}
	return item, nil
}

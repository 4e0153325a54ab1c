package models

import (
	"github.com/google/uuid"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id string)
}

// Base carries the document identity shared by every stored entity.
type Base struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID == "" {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = NewID()
}

func (m *Base) SetID(id string) {
	m.ID = id
}

func NewBase() Base {
	return Base{
		ID: NewID(),
	}
}

// NewIDHook lets tests force the next generated identifier.
var NewIDHook func() (id string, override bool)

// NewID returns a random UUID string used as a document _id.
func NewID() string {
	if NewIDHook != nil {
		if id, override := NewIDHook(); override {
			return id
		}
	}
	return uuid.NewString()
}

// NewSortableBase is NewBase with a time-ordered identifier.
func NewSortableBase() Base {
	return Base{
		ID: NewSortableID(),
	}
}

// NewSortableID returns a version 7 UUID. Within one process successive IDs
// compare in generation order, so they break created_at ties in insertion order.
func NewSortableID() string {
	if NewIDHook != nil {
		if id, override := NewIDHook(); override {
			return id
		}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsValidID reports whether s looks like an identifier generated by NewID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

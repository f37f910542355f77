package model

import (
	"errors"
	"fmt"
	"strings"
)

type ItemType string

const (
	TypeTask     ItemType = "task"
	TypeNote     ItemType = "note"
	TypeReminder ItemType = "reminder"
)

func (t ItemType) Valid() bool {
	switch t {
	case TypeTask, TypeNote, TypeReminder:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "baja"
	PriorityMedium Priority = "media"
	PriorityHigh   Priority = "alta"
)

// Rank orders priorities for sorting; unset sorts last.
func (p *Priority) Rank() int {
	if p == nil {
		return 0
	}
	switch *p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Item is a task, note or reminder as the API returns it.
type Item struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"usuario_id"`
	ProjectID      *int64    `json:"proyecto_id"`
	Type           ItemType  `json:"tipo"`
	Title          string    `json:"titulo"`
	Description    *string   `json:"descripcion"`
	Completed      bool      `json:"completada"`
	CreatedAt      string    `json:"fecha_creacion"`
	UpdatedAt      string    `json:"fecha_actualizacion"`
	DueAt          *string   `json:"fecha_vencimiento"`
	Priority       *Priority `json:"prioridad"`
	Tags           []string  `json:"etiquetas"`
	RecurrenceRule *string   `json:"regla_recurrencia"`
}

func (i Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

var ErrInvalidPayload = errors.New("invalid payload")

// Validate rejects pushed items that cannot be reconciled.
func (i Item) Validate() error {
	if i.ID <= 0 {
		return fmt.Errorf("%w: item id must be positive", ErrInvalidPayload)
	}
	if !i.Type.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidPayload, i.Type)
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("%w: item %d has empty title", ErrInvalidPayload, i.ID)
	}
	if i.Priority != nil {
		switch *i.Priority {
		case PriorityLow, PriorityMedium, PriorityHigh:
		default:
			return fmt.Errorf("%w: item %d has unknown priority %q", ErrInvalidPayload, i.ID, *i.Priority)
		}
	}
	return nil
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Push channel event names.
const (
	EventItemCreated = "item_created"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"

	EventAuthenticate  = "authenticate"
	EventJoinProject   = "join_project"
	EventLeaveProject  = "leave_project"
	EventJoinUserRoom  = "join_user_room"
	EventLeaveUserRoom = "leave_user_room"
)

// ItemDeleted is the item_deleted payload. ProjectID is informational.
type ItemDeleted struct {
	ID        int64  `json:"id"`
	ProjectID *int64 `json:"proyecto_id"`
}

// DecodeItem parses and validates an item_created / item_updated payload.
func DecodeItem(data []byte) (Item, error) {
	var item Item
	if err := decodeStrict(data, &item); err != nil {
		return Item{}, err
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DecodeItemDeleted parses and validates an item_deleted payload.
func DecodeItemDeleted(data []byte) (ItemDeleted, error) {
	var ev ItemDeleted
	if err := decodeStrict(data, &ev); err != nil {
		return ItemDeleted{}, err
	}
	if ev.ID <= 0 {
		return ItemDeleted{}, fmt.Errorf("%w: deleted id must be positive", ErrInvalidPayload)
	}
	return ev, nil
}

func decodeStrict(data []byte, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || data[0] != '{' {
		return fmt.Errorf("%w: expected object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorList is the ordered set of distinct actor display names on a
// notification. It is stored as a JSON-encoded array; Scan tolerates both
// the encoded string and native byte forms drivers hand back, so callers
// above the repository only ever see a typed list.
type ActorList []string

func (a *ActorList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = ActorList{}
		return nil
	case []byte:
		return a.decode(v)
	case string:
		return a.decode([]byte(v))
	default:
		return fmt.Errorf("unsupported actors representation %T", src)
	}
}

func (a *ActorList) decode(raw []byte) error {
	if len(raw) == 0 {
		*a = ActorList{}
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("failed to decode actors: %w", err)
	}
	*a = names
	return nil
}

func (a ActorList) Value() (driver.Value, error) {
	if a == nil {
		a = ActorList{}
	}
	raw, err := json.Marshal([]string(a))
	if err != nil {
		return nil, fmt.Errorf("failed to encode actors: %w", err)
	}
	return string(raw), nil
}

// Contains reports whether name is already on the list. Matching is exact
// and case-sensitive.
func (a ActorList) Contains(name string) bool {
	for _, n := range a {
		if n == name {
			return true
		}
	}
	return false
}

// Notification is a persisted per-user notification row. While unread it
// absorbs further events with the same aggregation key; once read it is
// never reopened.
type Notification struct {
	NotificationID uuid.UUID `db:"notification_id" json:"notification_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Type           EventType `db:"type" json:"type"`
	Title          string    `db:"title" json:"title"`
	Content        string    `db:"content" json:"content"`
	ReferenceType  string    `db:"reference_type" json:"reference_type"`
	ReferenceID    string    `db:"reference_id" json:"reference_id"`
	Actors         ActorList `db:"actors" json:"actors"`
	Count          int       `db:"count" json:"count"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

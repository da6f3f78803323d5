package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventReference(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  Reference
	}{
		{"like", Event{Type: EventLike, PostID: "p1"}, Reference{Type: ReferencePost, ID: "p1"}},
		{"comment", Event{Type: EventComment, PostID: "p1"}, Reference{Type: ReferencePost, ID: "p1"}},
		{"share", Event{Type: EventShare, PostID: "p1"}, Reference{Type: ReferencePost, ID: "p1"}},
		{"follow", Event{Type: EventFollow, TargetUserID: "u1"}, Reference{Type: ReferenceFollowers, ID: "u1"}},
		{"order", Event{Type: EventOrder, OrderID: "o1"}, Reference{Type: ReferenceOrder, ID: "o1"}},
		{"new post", Event{Type: EventNewPost, ActorID: "a1"}, Reference{Type: ReferenceAuthor, ID: "a1"}},
		{"unknown falls through to post", Event{Type: EventType("poke"), PostID: "p1"}, Reference{Type: ReferencePost, ID: "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Reference())
		})
	}
}

func TestEventValidate(t *testing.T) {
	valid := Event{Type: EventLike, TargetUserID: "u1"}
	assert.NoError(t, valid.Validate())

	missingType := Event{TargetUserID: "u1"}
	assert.Error(t, missingType.Validate())

	missingTarget := Event{Type: EventLike}
	assert.Error(t, missingTarget.Validate())
}

func TestOrderNumberOrID(t *testing.T) {
	e := Event{OrderID: "o1", OrderNumber: "ORD-001"}
	assert.Equal(t, "ORD-001", e.OrderNumberOrID())

	e.OrderNumber = ""
	assert.Equal(t, "o1", e.OrderNumberOrID())
}

func TestOrderEvents(t *testing.T) {
	events := OrderEvents("o1", "ORD-001", "buyer-1", "Alice", "owner-1")
	require.Len(t, events, 2)

	owner := events[0]
	assert.Equal(t, EventOrder, owner.Type)
	assert.Equal(t, "owner-1", owner.TargetUserID)
	assert.Equal(t, "Alice", owner.ActorName)
	assert.True(t, owner.ForShopOwner)

	buyer := events[1]
	assert.Equal(t, EventOrder, buyer.Type)
	assert.Equal(t, "buyer-1", buyer.TargetUserID)
	assert.False(t, buyer.ForShopOwner)

	for _, e := range events {
		assert.Equal(t, "o1", e.OrderID)
		assert.Equal(t, "ORD-001", e.OrderNumber)
		assert.NoError(t, e.Validate())
	}
}

package model

import (
	"github.com/go-playground/validator/v10"
)

// EventType discriminates the flat queue event union.
type EventType string

const (
	EventLike    EventType = "like"
	EventComment EventType = "comment"
	EventShare   EventType = "share"
	EventFollow  EventType = "follow"
	EventNewPost EventType = "new_post"
	EventOrder   EventType = "order"
)

// Event is a single notification-triggering message as published by the
// post, user and order services on the notification-events stream.
type Event struct {
	Type         EventType `json:"type" validate:"required"`
	ActorID      string    `json:"actor_id,omitempty"`
	ActorName    string    `json:"actor_name,omitempty"`
	TargetUserID string    `json:"target_user_id" validate:"required"`
	PostID       string    `json:"post_id,omitempty"`
	CommentID    string    `json:"comment_id,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	OrderNumber  string    `json:"order_number,omitempty"`
	ForShopOwner bool      `json:"for_shop_owner,omitempty"`
}

var validate = validator.New()

// Validate checks the fields every event must carry. An event failing this
// check can never become valid and is dropped by the consumer.
func (e *Event) Validate() error {
	return validate.Struct(e)
}

// Reference types a notification aggregates under.
const (
	ReferencePost      = "post"
	ReferenceFollowers = "followers"
	ReferenceOrder     = "order"
	ReferenceAuthor    = "author"
)

// Reference locates the entity a notification aggregates on. Together with
// the recipient and event type it forms the aggregation key.
type Reference struct {
	Type string
	ID   string
}

// Reference derives the aggregation reference for the event.
//
// Follow notifications group on the recipient, so every follow of a user
// lands in one aggregate. New-post notifications group on the author, not
// the individual post. Unknown types fall through to the post arm.
func (e *Event) Reference() Reference {
	switch e.Type {
	case EventLike, EventComment, EventShare:
		return Reference{Type: ReferencePost, ID: e.PostID}
	case EventFollow:
		return Reference{Type: ReferenceFollowers, ID: e.TargetUserID}
	case EventOrder:
		return Reference{Type: ReferenceOrder, ID: e.OrderID}
	case EventNewPost:
		return Reference{Type: ReferenceAuthor, ID: e.ActorID}
	default:
		return Reference{Type: ReferencePost, ID: e.PostID}
	}
}

// OrderNumberOrID returns the human-facing order number, falling back to
// the order id when the producer did not set one.
func (e *Event) OrderNumberOrID() string {
	if e.OrderNumber != "" {
		return e.OrderNumber
	}
	return e.OrderID
}

// OrderEvents builds the pair of events the order service publishes when an
// order is placed: one for the shop owner, one for the buyer.
func OrderEvents(orderID, orderNumber, buyerID, buyerName, shopOwnerID string) []Event {
	return []Event{
		{
			Type:         EventOrder,
			ActorID:      buyerID,
			ActorName:    buyerName,
			TargetUserID: shopOwnerID,
			OrderID:      orderID,
			OrderNumber:  orderNumber,
			ForShopOwner: true,
		},
		{
			Type:         EventOrder,
			ActorID:      buyerID,
			ActorName:    buyerName,
			TargetUserID: buyerID,
			OrderID:      orderID,
			OrderNumber:  orderNumber,
			ForShopOwner: false,
		},
	}
}

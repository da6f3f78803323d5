package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notification-service/internal/config"
	"github.com/jwalitptl/notification-service/internal/model"
	"github.com/jwalitptl/notification-service/internal/repository"
	"github.com/jwalitptl/notification-service/pkg/logger"
	"github.com/jwalitptl/notification-service/pkg/metrics"
)

// Registered once: promauto metrics panic on duplicate registration.
var testMetrics = metrics.New("aggregator_test")

type memoryStore struct {
	rows      []*model.Notification
	calls     int
	failNext  error
	createdAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{createdAt: time.Now()}
}

func (s *memoryStore) bump() error {
	s.calls++
	return s.failNext
}

func (s *memoryStore) Create(_ context.Context, n *model.Notification) (*model.Notification, error) {
	if err := s.bump(); err != nil {
		return nil, err
	}
	n.NotificationID = uuid.New()
	n.IsRead = false
	// Monotonic timestamps so List ordering is deterministic.
	s.createdAt = s.createdAt.Add(time.Millisecond)
	n.CreatedAt = s.createdAt
	n.UpdatedAt = s.createdAt
	s.rows = append(s.rows, n)
	return n, nil
}

func (s *memoryStore) FindUnreadAggregate(_ context.Context, userID string, eventType model.EventType, refType, refID string) (*model.Notification, error) {
	if err := s.bump(); err != nil {
		return nil, err
	}
	for _, n := range s.rows {
		if n.UserID == userID && n.Type == eventType && n.ReferenceType == refType && n.ReferenceID == refID && !n.IsRead {
			return n, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) UpdateAggregate(_ context.Context, id uuid.UUID, actors model.ActorList, count int, content string) (*model.Notification, error) {
	if err := s.bump(); err != nil {
		return nil, err
	}
	for _, n := range s.rows {
		if n.NotificationID == id {
			n.Actors = actors
			n.Count = count
			n.Content = content
			n.UpdatedAt = time.Now()
			return n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memoryStore) List(_ context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range s.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range s.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) MarkRead(_ context.Context, id uuid.UUID) error {
	for _, n := range s.rows {
		if n.NotificationID == id {
			n.IsRead = true
		}
	}
	return nil
}

func (s *memoryStore) MarkUnread(_ context.Context, id uuid.UUID) error {
	for _, n := range s.rows {
		if n.NotificationID == id {
			n.IsRead = false
		}
	}
	return nil
}

func (s *memoryStore) MarkAllRead(_ context.Context, userID string) error {
	for _, n := range s.rows {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (s *memoryStore) DeleteAll(_ context.Context, userID string) error {
	var kept []*model.Notification
	for _, n := range s.rows {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	s.rows = kept
	return nil
}

type recordingSink struct {
	pushes []*model.Notification
}

func (s *recordingSink) Push(_ string, n *model.Notification) {
	s.pushes = append(s.pushes, n)
}

type fakeDelivery struct {
	payload  []byte
	acked    int
	rejected int
}

func (d *fakeDelivery) ID() string                   { return "1-1" }
func (d *fakeDelivery) Payload() []byte              { return d.payload }
func (d *fakeDelivery) Ack(context.Context) error    { d.acked++; return nil }
func (d *fakeDelivery) Reject(context.Context) error { d.rejected++; return nil }

func newTestService(store *memoryStore, sink *recordingSink, policy config.ErrorPolicy) *Service {
	return NewService(store, sink, logger.New(nil), testMetrics, policy)
}

func deliver(t *testing.T, svc *Service, event model.Event) *fakeDelivery {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	d := &fakeDelivery{payload: payload}
	svc.Handle(context.Background(), d)
	return d
}

func likeEvent(actorName, postID, target string) model.Event {
	return model.Event{
		Type:         model.EventLike,
		ActorID:      "id-" + actorName,
		ActorName:    actorName,
		TargetUserID: target,
		PostID:       postID,
	}
}

func TestSingleActorCreate(t *testing.T) {
	store := newMemoryStore()
	sink := &recordingSink{}
	svc := newTestService(store, sink, config.ErrorPolicyDrop)

	d := deliver(t, svc, likeEvent("Alice", "post-1", "user-1"))

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, model.EventLike, n.Type)
	assert.Equal(t, "post", n.ReferenceType)
	assert.Equal(t, "post-1", n.ReferenceID)
	assert.Equal(t, model.ActorList{"Alice"}, n.Actors)
	assert.Equal(t, 1, n.Count)
	assert.Equal(t, "New like on your post", n.Title)
	assert.Equal(t, "Alice liked your post.", n.Content)
	assert.False(t, n.IsRead)

	assert.Equal(t, 1, d.acked)
	require.Len(t, sink.pushes, 1)
	assert.Equal(t, n, sink.pushes[0])
}

func TestMergeAccumulatesDistinctActors(t *testing.T) {
	store := newMemoryStore()
	sink := &recordingSink{}
	svc := newTestService(store, sink, config.ErrorPolicyDrop)

	deliver(t, svc, likeEvent("userA", "post-1", "user-1"))
	deliver(t, svc, likeEvent("userB", "post-1", "user-1"))

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, model.ActorList{"userA", "userB"}, n.Actors)
	assert.Equal(t, 2, n.Count)
	assert.Equal(t, "userA and userB liked your post.", n.Content)
	assert.Len(t, sink.pushes, 2)
}

func TestDuplicateActorNotReadded(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	deliver(t, svc, likeEvent("userA", "post-1", "user-1"))
	deliver(t, svc, likeEvent("userB", "post-1", "user-1"))
	d := deliver(t, svc, likeEvent("userA", "post-1", "user-1"))

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, model.ActorList{"userA", "userB"}, n.Actors)
	assert.Equal(t, 2, n.Count)
	assert.Equal(t, "userA and userB liked your post.", n.Content)
	assert.Equal(t, 1, d.acked)
}

func TestThreePlusActorPhrasing(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	deliver(t, svc, likeEvent("userA", "post-1", "user-1"))
	deliver(t, svc, likeEvent("userB", "post-1", "user-1"))
	deliver(t, svc, likeEvent("userC", "post-1", "user-1"))

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, model.ActorList{"userA", "userB", "userC"}, n.Actors)
	assert.Equal(t, 3, n.Count)
	assert.Equal(t, "userA, userB, and 1 others liked your post.", n.Content)
}

func TestFollowAggregatesPerRecipient(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	deliver(t, svc, model.Event{Type: model.EventFollow, ActorID: "a1", ActorName: "Alice", TargetUserID: "user-1"})
	deliver(t, svc, model.Event{Type: model.EventFollow, ActorID: "a2", ActorName: "Bob", TargetUserID: "user-1"})

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, "followers", n.ReferenceType)
	assert.Equal(t, "user-1", n.ReferenceID)
	assert.Equal(t, model.ActorList{"Alice", "Bob"}, n.Actors)
	assert.Equal(t, "Alice and Bob followed you.", n.Content)
}

func TestNewPostGroupsByAuthor(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	deliver(t, svc, model.Event{Type: model.EventNewPost, ActorID: "author-1", ActorName: "Alice", TargetUserID: "user-1", PostID: "post-1"})
	deliver(t, svc, model.Event{Type: model.EventNewPost, ActorID: "author-1", ActorName: "Alice", TargetUserID: "user-1", PostID: "post-2"})

	// Same author, different posts: still one aggregate.
	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, "author", n.ReferenceType)
	assert.Equal(t, "author-1", n.ReferenceID)
	assert.Equal(t, model.ActorList{"Alice"}, n.Actors)
	assert.Equal(t, "Alice posted something new.", n.Content)
}

func TestOrderEventsNeverMerge(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	order := model.Event{
		Type:         model.EventOrder,
		ActorID:      "buyer-1",
		ActorName:    "Alice",
		TargetUserID: "user-1",
		OrderID:      "order-1",
		OrderNumber:  "ORD-001",
	}
	deliver(t, svc, order)
	deliver(t, svc, order)

	require.Len(t, store.rows, 2)
	for _, n := range store.rows {
		assert.Equal(t, "order", n.ReferenceType)
		assert.Equal(t, "order-1", n.ReferenceID)
		assert.Equal(t, 1, n.Count)
		assert.Equal(t, "Order Placed", n.Title)
		assert.Equal(t, "Your order (ORD-001) is being processed.", n.Content)
	}
}

func TestOrderShopOwnerCopy(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	deliver(t, svc, model.Event{
		Type:         model.EventOrder,
		ActorID:      "buyer-1",
		ActorName:    "Alice",
		TargetUserID: "owner-1",
		OrderID:      "order-1",
		ForShopOwner: true,
	})

	require.Len(t, store.rows, 1)
	n := store.rows[0]
	assert.Equal(t, "New Order Received", n.Title)
	// No order number set, so the id is used.
	assert.Equal(t, "You have an order (order-1) from user Alice.", n.Content)
}

func TestMalformedEventDroppedWithoutStoreCalls(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	d := &fakeDelivery{payload: []byte(`{"type":"like"}`)}
	svc.Handle(context.Background(), d)

	assert.Equal(t, 0, store.calls)
	assert.Empty(t, store.rows)
	assert.Equal(t, 1, d.acked)
	assert.Equal(t, 0, d.rejected)
}

func TestUnparseablePayloadDropped(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	d := &fakeDelivery{payload: []byte("not json")}
	svc.Handle(context.Background(), d)

	assert.Equal(t, 0, store.calls)
	assert.Equal(t, 1, d.acked)
}

func TestReadUnreadRoundTripStartsFreshAggregate(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)
	ctx := context.Background()

	deliver(t, svc, likeEvent("userA", "post-1", "user-1"))
	require.Len(t, store.rows, 1)
	first := store.rows[0]

	require.NoError(t, store.MarkRead(ctx, first.NotificationID))
	require.NoError(t, store.MarkUnread(ctx, first.NotificationID))
	assert.False(t, first.IsRead)

	require.NoError(t, store.MarkRead(ctx, first.NotificationID))
	deliver(t, svc, likeEvent("userB", "post-1", "user-1"))

	// The read notification is never reopened; a new aggregate starts.
	require.Len(t, store.rows, 2)
	second := store.rows[1]
	assert.NotEqual(t, first.NotificationID, second.NotificationID)
	assert.Equal(t, model.ActorList{"userA"}, first.Actors)
	assert.Equal(t, model.ActorList{"userB"}, second.Actors)
	assert.Equal(t, 1, second.Count)
}

func TestStoreErrorAckedUnderDropPolicy(t *testing.T) {
	store := newMemoryStore()
	store.failNext = errors.New("store unavailable")
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDrop)

	d := deliver(t, svc, likeEvent("Alice", "post-1", "user-1"))

	assert.Equal(t, 1, d.acked)
	assert.Equal(t, 0, d.rejected)
}

func TestStoreErrorRejectedUnderDeadLetterPolicy(t *testing.T) {
	store := newMemoryStore()
	store.failNext = errors.New("store unavailable")
	svc := newTestService(store, &recordingSink{}, config.ErrorPolicyDeadLetter)

	d := deliver(t, svc, likeEvent("Alice", "post-1", "user-1"))

	assert.Equal(t, 0, d.acked)
	assert.Equal(t, 1, d.rejected)
}

package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/notification-service/internal/model"
)

func TestFormatContentThresholds(t *testing.T) {
	tests := []struct {
		name      string
		eventType model.EventType
		actors    model.ActorList
		refType   string
		want      string
	}{
		{"like one actor", model.EventLike, model.ActorList{"Alice"}, "post", "Alice liked your post."},
		{"like two actors", model.EventLike, model.ActorList{"Alice", "Bob"}, "post", "Alice and Bob liked your post."},
		{"like three actors", model.EventLike, model.ActorList{"Alice", "Bob", "Carol"}, "post", "Alice, Bob, and 1 others liked your post."},
		{"like five actors", model.EventLike, model.ActorList{"A", "B", "C", "D", "E"}, "post", "A, B, and 3 others liked your post."},
		{"comment one actor", model.EventComment, model.ActorList{"Alice"}, "post", "Alice commented on your post."},
		{"comment two actors", model.EventComment, model.ActorList{"Alice", "Bob"}, "post", "Alice and Bob commented on your post."},
		{"share one actor", model.EventShare, model.ActorList{"Alice"}, "post", "Alice shared your post."},
		{"share three actors", model.EventShare, model.ActorList{"Alice", "Bob", "Carol"}, "post", "Alice, Bob, and 1 others shared your post."},
		{"follow one actor", model.EventFollow, model.ActorList{"Alice"}, "followers", "Alice followed you."},
		{"follow two actors", model.EventFollow, model.ActorList{"Alice", "Bob"}, "followers", "Alice and Bob followed you."},
		{"follow four actors", model.EventFollow, model.ActorList{"Alice", "Bob", "Carol", "Dan"}, "followers", "Alice, Bob, and 2 others followed you."},
		{"new post one actor", model.EventNewPost, model.ActorList{"Alice"}, "author", "Alice posted something new."},
		{"new post two actors", model.EventNewPost, model.ActorList{"Alice", "Bob"}, "author", "Alice and Bob posted new content."},
		{"new post three actors", model.EventNewPost, model.ActorList{"Alice", "Bob", "Carol"}, "author", "Alice, Bob, and 1 others posted new content."},
		{"unknown type", model.EventType("poke"), model.ActorList{"Alice"}, "post", ""},
		{"no actors", model.EventLike, model.ActorList{}, "post", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatContent(tt.eventType, tt.actors, tt.refType))
		})
	}
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "New like on your post", titleFor(model.EventLike))
	assert.Equal(t, "New comment on your post", titleFor(model.EventComment))
	assert.Equal(t, "New share on your post", titleFor(model.EventShare))
	assert.Equal(t, "New follower", titleFor(model.EventFollow))
	assert.Equal(t, "New posts from people you follow", titleFor(model.EventNewPost))
	assert.Equal(t, "Notification", titleFor(model.EventType("poke")))
}

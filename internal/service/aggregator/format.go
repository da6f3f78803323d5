package aggregator

import (
	"fmt"

	"github.com/jwalitptl/notification-service/internal/model"
)

// formatContent renders the human-readable body for an aggregated
// notification. Actors are listed in first-seen order; beyond two actors
// the remainder collapses to a count ("N others", even when N is 1).
func formatContent(eventType model.EventType, actors model.ActorList, referenceType string) string {
	switch eventType {
	case model.EventLike:
		return phrase(actors, fmt.Sprintf("liked your %s.", referenceType))
	case model.EventComment:
		return phrase(actors, fmt.Sprintf("commented on your %s.", referenceType))
	case model.EventShare:
		return phrase(actors, fmt.Sprintf("shared your %s.", referenceType))
	case model.EventFollow:
		return phrase(actors, "followed you.")
	case model.EventNewPost:
		if len(actors) == 1 {
			return actors[0] + " posted something new."
		}
		return phrase(actors, "posted new content.")
	default:
		return ""
	}
}

func phrase(actors model.ActorList, tail string) string {
	switch len(actors) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s %s", actors[0], tail)
	case 2:
		return fmt.Sprintf("%s and %s %s", actors[0], actors[1], tail)
	default:
		return fmt.Sprintf("%s, %s, and %d others %s", actors[0], actors[1], len(actors)-2, tail)
	}
}

// titleFor picks the title used when a fresh aggregate is created. Order
// notifications carry their own titles and never reach this.
func titleFor(eventType model.EventType) string {
	switch eventType {
	case model.EventLike:
		return "New like on your post"
	case model.EventComment:
		return "New comment on your post"
	case model.EventShare:
		return "New share on your post"
	case model.EventFollow:
		return "New follower"
	case model.EventNewPost:
		return "New posts from people you follow"
	default:
		return "Notification"
	}
}

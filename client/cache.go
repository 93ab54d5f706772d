package client

import (
	"sort"
	"sync"
	"time"

	"github.com/atomhudson/allrentr-chat/internal/event"
)

// messageCache keeps the messages seen per conversation. Replayed
// mailbox envelopes and live pushes can overlap after a reconnect, so
// entries are deduplicated by message id and kept sorted by creation
// time.
type messageCache struct {
	mu             sync.RWMutex
	byConversation map[string][]event.MessagePayload
}

func newMessageCache() *messageCache {
	return &messageCache{
		byConversation: make(map[string][]event.MessagePayload),
	}
}

// Add inserts or replaces a message in its conversation.
func (mc *messageCache) Add(msg event.MessagePayload) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	msgs := mc.byConversation[msg.ConversationID]
	for i, m := range msgs {
		if m.ID == msg.ID {
			msgs[i] = msg
			return
		}
	}

	msgs = append(msgs, msg)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	mc.byConversation[msg.ConversationID] = msgs
}

// MarkRead stamps the read time on a cached message, if present.
func (mc *messageCache) MarkRead(conversationId, messageId string, readAt time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	msgs := mc.byConversation[conversationId]
	for i, m := range msgs {
		if m.ID == messageId {
			msgs[i].ReadAt = &readAt
			return
		}
	}
}

// Remove drops a deleted message from the cache.
func (mc *messageCache) Remove(conversationId, messageId string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	msgs := mc.byConversation[conversationId]
	for i, m := range msgs {
		if m.ID == messageId {
			mc.byConversation[conversationId] = append(msgs[:i], msgs[i+1:]...)
			return
		}
	}
}

// Messages returns a copy of the conversation's messages in creation
// order.
func (mc *messageCache) Messages(conversationId string) []event.MessagePayload {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	msgs := mc.byConversation[conversationId]
	out := make([]event.MessagePayload, len(msgs))
	copy(out, msgs)
	return out
}

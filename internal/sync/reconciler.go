package sync

import (
	"github.com/matheus3301/storechat/internal/chat"
	"go.uber.org/zap"
)

// ReconcileLocal replaces the temporary entry of a local send with its
// persisted form. The entry keeps its original timestamp and advances to
// delivered. When the temporary id is gone the entry is found by own
// author, same body and status sent instead. If the persisted id is
// already present, the temporary entry is folded into it.
//
// Returns false when no matching entry exists in the active conversation.
func (e *Engine) ReconcileLocal(tempID string, rec chat.Record) bool {
	e.mu.Lock()
	if rec.ConversationKey != "" && rec.ConversationKey != e.key {
		e.mu.Unlock()
		return false
	}

	i := e.indexOf(tempID)
	if i < 0 {
		i = e.findUnreconciled(rec.Body)
	}
	if i < 0 {
		e.mu.Unlock()
		e.logger.Debug("nothing to reconcile",
			zap.String("temp_id", tempID),
			zap.String("id", rec.ID),
		)
		return false
	}

	target := &e.messages[i]
	if j := e.indexOf(rec.ID); j >= 0 && j != i {
		e.messages[j].Status = e.messages[j].Status.Advance(chat.StatusDelivered)
		e.messages = append(e.messages[:i], e.messages[i+1:]...)
	} else {
		target.ID = rec.ID
		if rec.AuthorID != "" {
			target.AuthorID = rec.AuthorID
		}
		target.Status = target.Status.Advance(chat.StatusDelivered)
	}
	e.normalize()
	key := e.key
	e.mu.Unlock()

	e.notify(key)
	return true
}

// MarkSent advances the local entry id to sent after the live channel
// accepted it.
func (e *Engine) MarkSent(id string) bool {
	return e.advance(id, chat.StatusSent)
}

func (e *Engine) advance(id string, next chat.Status) bool {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	before := e.messages[i].Status
	e.messages[i].Status = before.Advance(next)
	changed := e.messages[i].Status != before
	key := e.key
	e.mu.Unlock()

	if changed {
		e.notify(key)
	}
	return changed
}

func (e *Engine) findUnreconciled(body string) int {
	for i, m := range e.messages {
		if m.Status == chat.StatusSent && m.Body == body && e.isOwn(m) {
			return i
		}
	}
	return -1
}

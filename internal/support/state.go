package support

import "supportdesk/backend/internal/models"

// Mode only ever moves from ai_bot to human_agent. Status is a flat machine where
// every state is reachable from every other; the only automatic move is open to
// pending when an operator replies.

// statusAfterOperatorReply returns the status a conversation takes when an operator
// reply lands, and whether it changed.
func statusAfterOperatorReply(current models.Status) (models.Status, bool) {
	if current == models.StatusOpen {
		return models.StatusPending, true
	}
	return current, false
}

// shouldHandOff reports whether a user message moves the conversation to a human.
func shouldHandOff(conv *models.Conversation, isHandoffRequest bool) bool {
	return conv.Mode == models.ModeAIBot && isHandoffRequest
}

// statusChange validates a requested status. changed is false for a no-op request.
func statusChange(current models.Status, requested models.Status) (changed bool, err error) {
	if !requested.Valid() {
		return false, validationError(map[string]string{"status": "must be one of open, pending, resolved, closed"})
	}
	return current != requested, nil
}

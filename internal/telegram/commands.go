package telegram

import (
	"strings"

	"supportdesk/backend/internal/models"
)

// operator commands typed inside a conversation topic
var statusCommands = map[string]models.Status{
	"resolve": models.StatusResolved,
	"close":   models.StatusClosed,
	"reopen":  models.StatusOpen,
	"pending": models.StatusPending,
}

// ParseStatusCommand recognises "/resolve", "/close", "/reopen" and "/pending",
// optionally addressed to the bot ("/close@support_bot").
func ParseStatusCommand(text string) (models.Status, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	status, ok := statusCommands[strings.ToLower(cmd)]
	return status, ok
}

package assistant

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"supportdesk/backend/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the message window sent to the generator.
type Turn struct {
	Role    string
	Content string
}

type promptContext struct {
	businessName    string
	businessContext string
	contactName     string
}

func buildSystemPrompt(ctx promptContext) string {
	lines := []string{
		"Role:",
		fmt.Sprintf("You are the virtual assistant on the website of %s.", ctx.businessName),
		"",
		"Behavior Rules:",
		behaviorRules(),
	}
	if c := normalizePromptInput(ctx.businessContext); c != "" {
		lines = append(lines, "", "Business Context:", c)
	}
	if ctx.contactName != "" {
		lines = append(lines, "", "Visitor:", "The visitor's name is "+normalizePromptInput(ctx.contactName)+".")
	}
	return strings.Join(lines, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the visitor's latest question, using the conversation so far for context.",
		"2) Keep answers short, friendly and professional; plain text, no markdown headings.",
		"3) Never invent prices, dates or commitments that are not in the business context.",
		"4) If you cannot help, suggest that the visitor ask to talk to a human.",
	}, "\n")
}

// buildWindow maps stored messages to generator turns and keeps the most recent
// maxTurns of them. System messages are left out. latest is appended unless the
// window already ends with it.
func buildWindow(history []models.Message, latest string, maxTurns int) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for i := range history {
		if t, ok := messageToTurn(&history[i]); ok {
			turns = append(turns, t)
		}
	}

	latest = strings.TrimSpace(latest)
	if latest != "" {
		n := len(turns)
		if n == 0 || turns[n-1].Role != RoleUser || turns[n-1].Content != latest {
			turns = append(turns, Turn{Role: RoleUser, Content: latest})
		}
	}

	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}

func messageToTurn(m *models.Message) (Turn, bool) {
	var role string
	switch m.SenderType {
	case models.SenderUser:
		role = RoleUser
	case models.SenderBot, models.SenderSupport:
		role = RoleAssistant
	default:
		return Turn{}, false
	}

	content := m.Text()
	if content == "" {
		if m.Attachment() == "" {
			return Turn{}, false
		}
		content = "[attachment]"
	}
	return Turn{Role: role, Content: content}, true
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// truncateRunes bounds s to max runes, cutting on a rune boundary.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

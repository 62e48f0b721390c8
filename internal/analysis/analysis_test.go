package analysis_test

import (
	"testing"

	"supportdesk/backend/internal/analysis"

	"github.com/stretchr/testify/assert"
)

func TestIsHandoffRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I need to talk to a human", true},
		{"Can I TALK TO A HUMAN please?", true},
		{"get me an agent!", true},
		{"I'd like a representative.", true},
		{"Is there a real person here?", true},
		{"put me through to customer support", true},
		{"human", true},
		{"hello", false},
		{"what are your prices?", false},
		{"do you work with travel agents", false},
		{"management consulting", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, analysis.IsHandoffRequest(tt.text))
		})
	}
}

func TestMatchHandoffPhrase_ReturnsMatchedPhrase(t *testing.T) {
	phrases := []string{"speak to a person", "operator"}

	assert.Equal(t, "speak to a person", analysis.MatchHandoffPhrase("please, SPEAK to a   person now", phrases))
	assert.Equal(t, "operator", analysis.MatchHandoffPhrase("Operator?", phrases))
	assert.Equal(t, "", analysis.MatchHandoffPhrase("operators are busy", phrases))
}

func TestMatchHandoffPhrase_TypographicApostrophe(t *testing.T) {
	phrases := []string{"don't want a bot"}

	assert.Equal(t, "don't want a bot", analysis.MatchHandoffPhrase("I don\u2019t want a bot", phrases))
	assert.Equal(t, "don't want a bot", analysis.MatchHandoffPhrase("I don't want a bot", phrases))
	assert.Equal(t, "", analysis.MatchHandoffPhrase("I don t want a bot", phrases))
}

func TestIsHandoffRequest_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.True(t, analysis.IsHandoffRequest("talk to a human"))
	}
}

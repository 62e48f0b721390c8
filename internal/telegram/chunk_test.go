package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestChunkLines(t *testing.T) {
	chunks := chunkLines("head", []string{"aaaa", "bbbb", "cccc"}, 10)
	assert.Equal(t, []string{"head\naaaa", "bbbb\ncccc"}, chunks)

	long := strings.Repeat("x", 25)
	chunks = chunkLines("h", []string{long}, 10)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, "h"+long, strings.ReplaceAll(strings.Join(chunks, ""), "\n", ""))
}

func TestIsImageURL(t *testing.T) {
	assert.True(t, isImageURL("https://cdn/x/photo.JPG"))
	assert.True(t, isImageURL("https://cdn/x/a.webp?sig=1"))
	assert.False(t, isImageURL("https://cdn/x/report.pdf"))
	assert.False(t, isImageURL("https://cdn/x/noext"))
}

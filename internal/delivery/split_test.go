package delivery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortText(t *testing.T) {
	require.Nil(t, SplitMessage("", 100))
	require.Equal(t, []string{"hello"}, SplitMessage("hello", 100))
}

func TestSplitMessagePrefersLineBoundaries(t *testing.T) {
	lines := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	text := strings.Join(lines, "\n")

	chunks := SplitMessage(text, 90)
	require.Equal(t, []string{
		lines[0] + "\n" + lines[1],
		lines[2],
	}, chunks)
}

func TestSplitMessageBreaksOversizedLineOnWords(t *testing.T) {
	line := "alpha beta gamma delta"
	chunks := SplitMessage(line, 12)
	require.Equal(t, []string{"alpha beta", "gamma delta"}, chunks)
}

func TestSplitMessageTruncatesOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 50)
	chunks := SplitMessage(word, 10)
	require.Equal(t, []string{strings.Repeat("x", 7) + "..."}, chunks)
}

func TestSplitMessageMixedContent(t *testing.T) {
	text := "short line\n" + strings.Repeat("y", 30) + " tail\nfinal"
	chunks := SplitMessage(text, 20)
	require.Equal(t, []string{
		"short line",
		strings.Repeat("y", 17) + "...",
		"tail",
		"final",
	}, chunks)
}

func TestSplitMessageChunksNeverExceedLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("some reasonably sized words on a line that keeps going for a while\n")
	}
	b.WriteString(strings.Repeat("z", 9000))

	const limit = MaxMessageLength
	chunks := SplitMessage(b.String(), limit)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), limit, "chunk %d", i)
		require.NotEmpty(t, chunk, "chunk %d", i)
	}
}

func TestSplitMessagePreservesOrder(t *testing.T) {
	text := "first\nsecond\nthird\nfourth"
	chunks := SplitMessage(text, 12)
	rejoined := strings.Join(chunks, "\n")
	require.Equal(t, text, rejoined)
}

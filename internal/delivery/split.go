package delivery

import "strings"

// SplitMessage breaks text into chunks of at most limit characters. Splits
// prefer line boundaries, then word boundaries inside an oversized line; a
// single word longer than the limit is truncated with an ellipsis. Chunk
// order preserves the original text order.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if len(line) > limit {
			flush()
			for _, piece := range splitLine(line, limit) {
				chunks = append(chunks, piece)
			}
			continue
		}

		needed := len(line)
		if current.Len() > 0 {
			needed++
		}
		if current.Len()+needed > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()

	return chunks
}

// splitLine breaks one oversized line on word boundaries.
func splitLine(line string, limit int) []string {
	var chunks []string
	var current strings.Builder

	for _, word := range strings.Split(line, " ") {
		if len(word) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, truncateWord(word, limit))
			continue
		}

		needed := len(word)
		if current.Len() > 0 {
			needed++
		}
		if current.Len()+needed > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func truncateWord(word string, limit int) string {
	if limit <= 3 {
		return word[:limit]
	}
	return word[:limit-3] + "..."
}

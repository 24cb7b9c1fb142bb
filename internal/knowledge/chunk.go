package knowledge

import "strings"

const (
	defaultChunkSize    = 1200
	defaultChunkOverlap = 200
)

// chunkText splits a document into overlapping chunks, preferring
// paragraph boundaries. Empty and whitespace-only input yields nil.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		// Cut at the last paragraph or line break inside the window.
		cut := end
		if idx := strings.LastIndex(text[start:end], "\n\n"); idx > 0 {
			cut = start + idx
		} else if idx := strings.LastIndex(text[start:end], "\n"); idx > 0 {
			cut = start + idx
		}

		chunk := strings.TrimSpace(text[start:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

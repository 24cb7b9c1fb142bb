package knowledge

import (
	"strings"
	"testing"
)

func TestChunkTextEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\t"} {
		if chunks := chunkText(input, 100, 20); chunks != nil {
			t.Errorf("chunkText(%q) = %v, expected nil", input, chunks)
		}
	}
}

func TestChunkTextShortDocument(t *testing.T) {
	chunks := chunkText("short document", 100, 20)
	if len(chunks) != 1 || chunks[0] != "short document" {
		t.Errorf("chunkText on short input = %v, expected single chunk", chunks)
	}
}

func TestChunkTextSplitsLongDocument(t *testing.T) {
	para := strings.Repeat("word ", 30)
	doc := para + "\n\n" + para + "\n\n" + para
	chunks := chunkText(doc, 200, 40)

	if len(chunks) < 2 {
		t.Fatalf("chunkText on long input produced %d chunks, expected several", len(chunks))
	}
	for n, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", n)
		}
		if len(chunk) > 200 {
			t.Errorf("chunk %d is %d bytes, exceeds window", n, len(chunk))
		}
	}
}

func TestChunkTextMakesProgressWithoutBreaks(t *testing.T) {
	// No newlines at all: the splitter must still terminate.
	doc := strings.Repeat("x", 1000)
	chunks := chunkText(doc, 100, 50)
	if len(chunks) < 10 {
		t.Errorf("chunkText on unbroken input produced %d chunks", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(doc) {
		t.Errorf("chunks cover %d of %d bytes", total, len(doc))
	}
}

package tts

import (
	"strings"
	"testing"
)

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	chunks := ChunkText("Hello there.", 400)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Hello there." {
		t.Fatalf("unexpected chunk text: %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 {
		t.Fatalf("expected index 0, got %d", chunks[0].Index)
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t  \n"} {
		if chunks := ChunkText(input, 400); chunks != nil {
			t.Fatalf("input %q: expected no chunks, got %d", input, len(chunks))
		}
	}
}

func TestChunkTextSentencePacking(t *testing.T) {
	input := "Hello. How are you today? " +
		"This next sentence is far too long to fit in forty characters by itself."

	chunks := ChunkText(input, 20)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0].Text != "Hello." {
		t.Fatalf("chunk 0: %q", chunks[0].Text)
	}
	if chunks[1].Text != "How are you today?" {
		t.Fatalf("chunk 1: %q", chunks[1].Text)
	}
	// The oversized sentence is never split; it becomes one big chunk.
	if len(chunks[2].Text) <= 20 {
		t.Fatalf("chunk 2 should exceed the budget, got %d chars", len(chunks[2].Text))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d carries index %d", i, c.Index)
		}
	}
}

func TestChunkTextGreedyAccumulation(t *testing.T) {
	// Two short sentences fit one budget together.
	chunks := ChunkText("Hi. Bye. This sentence pushes past the limit.", 12)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0].Text != "Hi. Bye." {
		t.Fatalf("chunk 0: %q", chunks[0].Text)
	}
}

func TestChunkTextSizeBound(t *testing.T) {
	input := "One two. Three four five. Six seven eight nine ten. Eleven. Twelve thirteen fourteen."
	for _, budget := range []int{10, 25, 50, 400} {
		for _, c := range ChunkText(input, budget) {
			if len(c.Text) > budget {
				// Only a single oversized sentence may exceed the budget.
				if strings.ContainsAny(strings.TrimRight(c.Text, ".!?"), ".!?") {
					t.Fatalf("budget %d: multi-sentence chunk exceeds bound: %q", budget, c.Text)
				}
			}
		}
	}
}

func TestChunkTextReconstruction(t *testing.T) {
	input := "First sentence here. Second one follows! Third asks a question? Fourth wraps up."
	chunks := ChunkText(input, 25)

	var parts []string
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	if got := strings.Join(parts, " "); got != input {
		t.Fatalf("reconstruction mismatch:\n got %q\nwant %q", got, input)
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	input := "Some text. More text! Even more? Plenty to go around, really."
	first := ChunkText(input, 18)
	for i := 0; i < 5; i++ {
		again := ChunkText(input, 18)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks vs %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d chunk %d: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestChunkTextNoBudget(t *testing.T) {
	chunks := ChunkText("A. B. C.", 0)
	if len(chunks) != 1 || chunks[0].Text != "A. B. C." {
		t.Fatalf("expected whole text as one chunk, got %v", chunks)
	}
}

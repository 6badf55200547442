package tts

import (
	"strings"
	"unicode"
)

// Chunk is an ordered slice of the input text, synthesized and played
// as one unit.
type Chunk struct {
	Index int
	Text  string
}

// ChunkText splits text into chunks of at most maxChars characters.
// Sentences are split on terminal punctuation (. ! ?) followed by
// whitespace, then greedily packed: when appending the next sentence
// would push the buffer past maxChars, the buffer is flushed and a new
// one starts with that sentence. A single sentence longer than
// maxChars is never split further; it becomes one oversized chunk.
// Chunking only bounds latency before first audio, so that trade-off
// is acceptable.
//
// Deterministic: the same (text, maxChars) always yields the same
// sequence. Whitespace-only input yields no chunks; the pipeline, not
// the chunker, rejects empty text.
func ChunkText(text string, maxChars int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []Chunk{{Index: 0, Text: text}}
	}

	var chunks []Chunk
	flush := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: s})
		}
	}

	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxChars {
			flush(current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush(current.String())

	if len(chunks) == 0 {
		return []Chunk{{Index: 0, Text: text}}
	}
	return chunks
}

// splitSentences splits text at sentence boundaries (. ! ?), keeping
// the punctuation attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

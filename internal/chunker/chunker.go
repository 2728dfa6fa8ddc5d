package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Passage is one retrieval-sized excerpt of a document. Passages are produced
// in a single chunking pass and are immutable afterwards; re-ingesting a
// document supersedes its passages rather than mutating them.
type Passage struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
	PageNumber  *int   `json:"page_number,omitempty"`
	TotalChunks int    `json:"total_chunks"`
}

type Options struct {
	MaxChunkSize      int
	ChunkOverlap      int
	SplitOnPageBreaks bool
}

func DefaultOptions() Options {
	return Options{
		MaxChunkSize:      1000,
		ChunkOverlap:      200,
		SplitOnPageBreaks: true,
	}
}

var (
	pageBreakRe = regexp.MustCompile(`\f|\n{3,}`)
	sentenceRe  = regexp.MustCompile(`([.!?])\s+`)
)

// Chunk splits text into overlapping passages. Pages are split first (form
// feed or runs of 3+ newlines), then sentences are greedily packed into chunks
// of at most MaxChunkSize characters, seeding each new chunk with a tail of
// trailing words from the previous one. Empty input yields no passages.
func Chunk(text, documentID string, opts Options) []Passage {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultOptions().MaxChunkSize
	}

	pages := []string{text}
	if opts.SplitOnPageBreaks {
		pages = pageBreakRe.Split(text, -1)
	}

	var passages []Passage
	chunkIndex := 0
	multiPage := len(pages) > 1

	for pageNum, page := range pages {
		pageText := strings.TrimSpace(page)
		if pageText == "" {
			continue
		}

		for _, chunkText := range splitText(pageText, opts.MaxChunkSize, opts.ChunkOverlap) {
			p := Passage{
				ID:         fmt.Sprintf("%s-chunk-%d", documentID, chunkIndex),
				DocumentID: documentID,
				ChunkIndex: chunkIndex,
				Text:       chunkText,
			}
			if multiPage {
				n := pageNum + 1
				p.PageNumber = &n
			}
			passages = append(passages, p)
			chunkIndex++
		}
	}

	for i := range passages {
		passages[i].TotalChunks = len(passages)
	}

	return passages
}

// splitText packs sentences into chunks of at most maxSize characters. A
// sentence longer than maxSize is force-split on word boundaries with no
// overlap between the forced sub-chunks.
func splitText(text string, maxSize, overlap int) []string {
	var chunks []string
	currentChunk := ""

	for _, sentence := range splitIntoSentences(text) {
		if len(sentence) > maxSize {
			if currentChunk != "" {
				chunks = append(chunks, strings.TrimSpace(currentChunk))
				currentChunk = ""
			}

			wordChunk := ""
			for _, word := range strings.Split(sentence, " ") {
				if wordChunk != "" && len(wordChunk)+1+len(word) > maxSize {
					chunks = append(chunks, strings.TrimSpace(wordChunk))
					wordChunk = word
				} else if wordChunk == "" {
					wordChunk = word
				} else {
					wordChunk += " " + word
				}
			}
			if wordChunk != "" {
				currentChunk = wordChunk
			}
			continue
		}

		if currentChunk == "" {
			currentChunk = sentence
		} else if len(currentChunk)+1+len(sentence) <= maxSize {
			currentChunk += " " + sentence
		} else {
			chunks = append(chunks, strings.TrimSpace(currentChunk))
			if tail := overlapTail(currentChunk, overlap); tail != "" {
				currentChunk = tail + " " + sentence
			} else {
				currentChunk = sentence
			}
		}
	}

	if currentChunk != "" {
		chunks = append(chunks, strings.TrimSpace(currentChunk))
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	marked := sentenceRe.ReplaceAllString(text, "$1\n")

	var sentences []string
	for _, s := range strings.Split(marked, "\n") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// overlapTail returns roughly overlapSize/5 trailing words of text. The
// divide-by-five word approximation comes from the character budget and is
// kept for compatibility, not because it is exact.
func overlapTail(text string, overlapSize int) string {
	words := strings.Split(text, " ")
	n := overlapSize / 5
	if n <= 0 {
		return ""
	}
	if n >= len(words) {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}

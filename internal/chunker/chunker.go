// Package chunker packs ordered entries into size-bounded messages without
// splitting any entry.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Chunk greedily packs entries, in order, into chunks whose length in
// characters is at most maxSize once joined with sep. An entry longer than
// maxSize is emitted alone and unmodified. Empty input returns nil.
func Chunk(entries []string, maxSize int, sep string) []string {
	if len(entries) == 0 {
		return nil
	}
	sepLen := utf8.RuneCountInString(sep)
	chunks := []string{}
	var (
		current    strings.Builder
		currentLen int
		open       bool
	)
	for _, entry := range entries {
		entryLen := utf8.RuneCountInString(entry)
		if open && currentLen+sepLen+entryLen <= maxSize {
			current.WriteString(sep)
			current.WriteString(entry)
			currentLen += sepLen + entryLen
			continue
		}
		if open {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(entry)
		currentLen = entryLen
		open = true
	}
	if open {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Lines splits text on newlines and packs the lines with Chunk.
func Lines(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxSize {
		return []string{text}
	}
	return Chunk(strings.Split(text, "\n"), maxSize, "\n")
}

package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkEmptyInput(t *testing.T) {
	if chunks := Chunk(nil, 2000, "\n"); chunks != nil {
		t.Fatalf("expected nil chunks, got %#v", chunks)
	}
	if chunks := Chunk([]string{}, 2000, "\n"); chunks != nil {
		t.Fatalf("expected nil chunks, got %#v", chunks)
	}
}

func TestChunkPacksWhileFitting(t *testing.T) {
	chunks := Chunk([]string{"aaa", "bbb", "ccc"}, 7, "\n")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %#v", chunks)
	}
	if chunks[0] != "aaa\nbbb" || chunks[1] != "ccc" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestChunkOversizedEntryStandsAlone(t *testing.T) {
	big := "!b: " + strings.Repeat("y", 2000)
	chunks := Chunk([]string{"!a: x", big}, 2000, "\n")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != "!a: x" {
		t.Fatalf("unexpected first chunk: %q", chunks[0])
	}
	if chunks[1] != big {
		t.Fatal("oversized entry must pass through untouched")
	}
}

func TestChunkOversizedEntryInTheMiddle(t *testing.T) {
	big := strings.Repeat("z", 12)
	chunks := Chunk([]string{"a", big, "b", "c"}, 5, "\n")
	want := []string{"a", big, "b\nc"}
	if strings.Join(chunks, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %#v, got %#v", want, chunks)
	}
}

func TestChunkCountsCharactersNotBytes(t *testing.T) {
	entry := strings.Repeat("é", 3)
	chunks := Chunk([]string{entry, entry}, 7, "\n")
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk of 7 characters, got %#v", chunks)
	}
}

func TestChunkPropertiesOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		maxSize := 20 + rng.Intn(200)
		entries := make([]string, rng.Intn(40))
		longest := 0
		for i := range entries {
			entries[i] = strings.Repeat("x", rng.Intn(maxSize+1))
			if len(entries[i]) > longest {
				longest = len(entries[i])
			}
		}
		if longest > maxSize {
			t.Fatalf("generator bug: entry longer than max size")
		}
		chunks := Chunk(entries, maxSize, "\n")
		for _, chunk := range chunks {
			if utf8.RuneCountInString(chunk) > maxSize {
				t.Fatalf("round %d: chunk of %d exceeds max %d", round, len(chunk), maxSize)
			}
		}
		if len(entries) == 0 {
			if chunks != nil {
				t.Fatalf("round %d: expected nil for empty input", round)
			}
			continue
		}
		if strings.Join(chunks, "\n") != strings.Join(entries, "\n") {
			t.Fatalf("round %d: chunks do not reconstruct entries", round)
		}
		rebuilt := []string{}
		for _, chunk := range chunks {
			rebuilt = append(rebuilt, strings.Split(chunk, "\n")...)
		}
		if len(rebuilt) != len(entries) {
			t.Fatalf("round %d: entry boundaries changed: %d vs %d", round, len(rebuilt), len(entries))
		}
	}
}

func TestLines(t *testing.T) {
	if got := Lines("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected lines: %#v", got)
	}
	if got := Lines("", 10); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
	got := Lines("one\ntwo\nthree", 8)
	if len(got) != 2 || got[0] != "one\ntwo" || got[1] != "three" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

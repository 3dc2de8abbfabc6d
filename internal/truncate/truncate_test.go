package truncate

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateShorterThanMaxUnchanged(t *testing.T) {
	s := "hello"
	if got := Truncate(s, 10); got != s {
		t.Errorf("Truncate = %q, want unchanged %q", got, s)
	}
}

func TestTruncateAddsSuffixAndStaysValidUTF8(t *testing.T) {
	// mixed Chinese characters and emoji, mirroring the spec's
	// truncation scenario.
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteString("中😀")
	}
	s := b.String()

	got := Truncate(s, 4000)
	if !utf8.ValidString(got) {
		t.Fatal("Truncate produced invalid UTF-8")
	}
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Errorf("expected truncation suffix, got suffix of %q", got[max(0, len(got)-30):])
	}
	if utf8.RuneCountInString(got) > 4000 {
		t.Errorf("rune count %d exceeds 4000", utf8.RuneCountInString(got))
	}
}

func TestTruncatePropertyNeverSplitsRunes(t *testing.T) {
	inputs := []string{
		"",
		"a",
		strings.Repeat("é", 50),
		strings.Repeat("🎉", 50),
		strings.Repeat("中文测试", 100),
	}
	for _, s := range inputs {
		for n := 0; n <= utf8.RuneCountInString(s)+5; n++ {
			got := Truncate(s, n)
			if !utf8.ValidString(got) {
				t.Fatalf("Truncate(%q, %d) produced invalid UTF-8: %q", s, n, got)
			}
		}
	}
}

func TestChunkNeverSplitsRunesAndStaysWithinBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 3000; i++ {
		b.WriteString("测")
		if i%50 == 0 {
			b.WriteByte('\n')
		}
	}
	s := b.String()

	chunks := Chunk(s, 2000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var rebuilt strings.Builder
	for _, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid UTF-8: %q", c)
		}
		if utf8.RuneCountInString(c) > 2000 {
			t.Fatalf("chunk exceeds budget: %d runes", utf8.RuneCountInString(c))
		}
		rebuilt.WriteString(c)
	}
	if rebuilt.String() != s {
		t.Fatal("chunks do not reassemble to the original string")
	}
}

func TestChunkEmptyString(t *testing.T) {
	if chunks := Chunk("", 100); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

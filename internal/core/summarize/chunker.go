package summarize

import "unicode"

// wordStarts returns the byte offset of every word start in text. A word is a
// maximal run of non-whitespace.
func wordStarts(text string) []int {
	var starts []int
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			starts = append(starts, i)
			inWord = true
		}
	}
	return starts
}

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(wordStarts(text))
}

// SplitWords splits text into ceil(W/limit) chunks of at most limit words
// each, cutting only at whitespace so no word is ever split. The chunks
// concatenate back to the input byte for byte: whitespace between two chunks
// stays attached to the earlier one.
func SplitWords(text string, limit int) []string {
	if text == "" {
		return nil
	}
	starts := wordStarts(text)
	if len(starts) <= limit {
		return []string{text}
	}

	var chunks []string
	prev := 0
	for i := limit; i < len(starts); i += limit {
		cut := starts[i]
		chunks = append(chunks, text[prev:cut])
		prev = cut
	}
	return append(chunks, text[prev:])
}

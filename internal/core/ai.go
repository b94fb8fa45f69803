package core

import "context"

// Summarizer produces a natural-language summary of a text span. The
// instruction tells the backend what kind of summary is wanted (single-pass,
// chunk i of n, final combine). Implementations surface one error per call;
// retry policy belongs to the caller.
type Summarizer interface {
	Summarize(ctx context.Context, text string, instruction string) (string, error)
}

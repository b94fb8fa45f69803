package core

import "context"

// DocumentExtractor turns raw document bytes into markdown text. One
// implementation per ExtractionMode; the worker dispatches through a
// mode-keyed map built at wiring time.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

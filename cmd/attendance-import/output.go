package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// lineWriter emits one JSON document per line.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &lineWriter{enc: enc}
}

func (l *lineWriter) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

package mesh

import "sync"

// Memo caches the most recently assembled Buffer under an explicit key.
// The buffer is rebuilt only when Get is called with a different key; the
// caller decides what identifies its input (a fetch key, a content hash).
// A Memo is safe for concurrent use.
type Memo struct {
	mu     sync.Mutex
	key    string
	valid  bool
	buf    *Buffer
	builds int
}

// Get returns the cached buffer for key, or assembles the faces produced by
// load and caches the result. Errors are not cached.
func (m *Memo) Get(key string, load func() ([]Face, error)) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.key == key {
		return m.buf, nil
	}

	faces, err := load()
	if err != nil {
		return nil, err
	}
	buf, err := Assemble(faces)
	if err != nil {
		return nil, err
	}

	m.key = key
	m.buf = buf
	m.valid = true
	m.builds++
	return buf, nil
}

// Invalidate drops the cached buffer.
func (m *Memo) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.buf = nil
	m.key = ""
	m.mu.Unlock()
}

// Builds returns how many times the memo has assembled a buffer.
func (m *Memo) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

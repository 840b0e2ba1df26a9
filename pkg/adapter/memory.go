package adapter

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
)

// MemoryBlob keeps objects in process memory. The HTTP server serves them
// under its URL base.
type MemoryBlob struct {
	urlBase string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryBlob creates an empty store whose URLs start with urlBase
// ("/files/" when empty).
func NewMemoryBlob(urlBase string) *MemoryBlob {
	if urlBase == "" {
		urlBase = "/files/"
	}
	if !strings.HasSuffix(urlBase, "/") {
		urlBase += "/"
	}
	return &MemoryBlob{
		urlBase: urlBase,
		objects: map[string]memoryObject{},
	}
}

type memoryWriter struct {
	ctx         context.Context
	blob        *MemoryBlob
	path        string
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, goerr.New("write to closed writer", goerr.V("path", w.path))
	}
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.ctx.Err(); err != nil {
		return err
	}

	w.blob.mu.Lock()
	defer w.blob.mu.Unlock()
	w.blob.objects[w.path] = memoryObject{
		data:        bytes.Clone(w.buf.Bytes()),
		contentType: w.contentType,
	}
	return nil
}

func (m *MemoryBlob) NewWriter(ctx context.Context, path, contentType string) (io.WriteCloser, error) {
	return &memoryWriter{ctx: ctx, blob: m, path: path, contentType: contentType}, nil
}

func (m *MemoryBlob) URL(path string) string {
	return m.urlBase + escapePath(path)
}

func (m *MemoryBlob) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[path]; !ok {
		return goerr.Wrap(model.ErrNotFound, "object does not exist", goerr.V("path", path))
	}
	delete(m.objects, path)
	return nil
}

// Open returns the content and content type of the object at path.
func (m *MemoryBlob) Open(path string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, "", goerr.Wrap(model.ErrNotFound, "object does not exist", goerr.V("path", path))
	}
	return obj.data, obj.contentType, nil
}

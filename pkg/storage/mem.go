package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/brimdata/zframe/zqe"
)

// MemEngine keeps objects in process memory.  It serves the cache scheme,
// which holds scratch data that need not outlive the process.
type MemEngine struct {
	mu      sync.RWMutex
	objects map[string][]byte
	dirs    map[string]struct{}
}

var _ Engine = (*MemEngine)(nil)
var _ DirMaker = (*MemEngine)(nil)
var _ Stater = (*MemEngine)(nil)

func NewMemEngine() *MemEngine {
	return &MemEngine{
		objects: make(map[string][]byte),
		dirs:    make(map[string]struct{}),
	}
}

func memKey(u *URI) string {
	return path.Clean("/" + u.Host + "/" + u.Path)
}

func (m *MemEngine) Get(_ context.Context, u *URI) (Reader, error) {
	m.mu.RLock()
	b, ok := m.objects[memKey(u)]
	m.mu.RUnlock()
	if !ok {
		return nil, zqe.E(zqe.NotFound, u.String())
	}
	return NewObjectReader(b), nil
}

func (m *MemEngine) Put(_ context.Context, u *URI) (io.WriteCloser, error) {
	return &memWriter{engine: m, key: memKey(u)}, nil
}

func (m *MemEngine) PutIfNotExists(_ context.Context, u *URI, b []byte) error {
	key := memKey(u)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return zqe.E(zqe.Exists, u.String())
	}
	m.store(key, bytes.Clone(b))
	return nil
}

// store must be called with m.mu held.
func (m *MemEngine) store(key string, b []byte) {
	m.objects[key] = b
	for dir := path.Dir(key); dir != "/"; dir = path.Dir(dir) {
		m.dirs[dir] = struct{}{}
	}
}

func (m *MemEngine) Delete(_ context.Context, u *URI) error {
	key := memKey(u)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return zqe.E(zqe.NotFound, u.String())
	}
	delete(m.objects, key)
	return nil
}

func (m *MemEngine) DeleteByPrefix(_ context.Context, u *URI) error {
	key := memKey(u)
	prefix := strings.TrimSuffix(key, "/") + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	for k := range m.dirs {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(m.dirs, k)
		}
	}
	return nil
}

func (m *MemEngine) Exists(_ context.Context, u *URI) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[memKey(u)]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemEngine) Size(_ context.Context, u *URI) (int64, error) {
	m.mu.RLock()
	b, ok := m.objects[memKey(u)]
	m.mu.RUnlock()
	if !ok {
		return 0, zqe.E(zqe.NotFound, u.String())
	}
	return int64(len(b)), nil
}

func (m *MemEngine) Stat(_ context.Context, u *URI) (Info, error) {
	key := memKey(u)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.objects[key]; ok {
		return Info{Name: path.Base(key), Size: int64(len(b))}, nil
	}
	if _, ok := m.dirs[key]; ok || key == "/" {
		return Info{Name: path.Base(key), IsDir: true}, nil
	}
	return Info{}, zqe.E(zqe.NotFound, u.String())
}

// List returns the immediate children of the directory u.
func (m *MemEngine) List(_ context.Context, u *URI) ([]Info, error) {
	key := memKey(u)
	prefix := strings.TrimSuffix(key, "/") + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.dirs[key]; !ok && key != "/" {
		return nil, zqe.E(zqe.NotFound, u.String())
	}
	var infos []Info
	for k, b := range m.objects {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			infos = append(infos, Info{Name: rest, Size: int64(len(b))})
		}
	}
	for k := range m.dirs {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			infos = append(infos, Info{Name: rest, IsDir: true})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *MemEngine) MkdirAll(_ context.Context, u *URI) error {
	key := memKey(u)
	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := key; dir != "/"; dir = path.Dir(dir) {
		m.dirs[dir] = struct{}{}
	}
	return nil
}

type memWriter struct {
	bytes.Buffer
	engine *MemEngine
	key    string
	closed bool
}

func (w *memWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.engine.mu.Lock()
	w.engine.store(w.key, w.Bytes())
	w.engine.mu.Unlock()
	return nil
}

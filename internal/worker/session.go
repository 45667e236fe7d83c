package worker

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/size-analysis/internal/parser/ndjson"
	"github.com/size-analysis/internal/sizetree"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

// DefaultDecoderCacheSize is the number of decoders a session keeps.
const DefaultDecoderCacheSize = 4

// Session is the state of one viewer: the current tree and the decoders of
// recently loaded inputs. The tree is written only by the running load and
// read by opens; mu serializes the two.
type Session struct {
	ID string

	mu       sync.RWMutex
	builder  *sizetree.Builder
	diffMode bool

	decoders *lru.Cache[string, *ndjson.Decoder]
}

// NewSession creates a session that caches up to cacheSize decoders.
func NewSession(id string, cacheSize int) *Session {
	if cacheSize <= 0 {
		cacheSize = DefaultDecoderCacheSize
	}
	decoders, _ := lru.NewWithEvict[string, *ndjson.Decoder](cacheSize, func(_ string, d *ndjson.Decoder) {
		d.Abort()
	})
	return &Session{ID: id, decoders: decoders}
}

// decoder returns the cached decoder for src, creating one if needed. The
// bool reports a cache hit.
func (s *Session) decoder(src ndjson.Source, opts ...ndjson.Option) (*ndjson.Decoder, bool) {
	if d, ok := s.decoders.Get(src.Key()); ok {
		return d, true
	}
	d := ndjson.NewDecoder(src, opts...)
	s.decoders.Add(src.Key(), d)
	return d, false
}

// forget drops the decoder cached for key.
func (s *Session) forget(key string) {
	s.decoders.Remove(key)
}

// reset installs a fresh builder for a new stream.
func (s *Session) reset(b *sizetree.Builder, diffMode bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder = b
	s.diffMode = diffMode
}

// add ingests one file entry into the current tree.
func (s *Session) add(b *sizetree.Builder, fe *model.FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return b.AddFileEntry(fe, s.diffMode)
}

// snapshot formats the root of b to depth.
func (s *Session) snapshot(b *sizetree.Builder, depth int) *model.TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return b.Format(b.Root(), depth)
}

// rootSize returns the aggregated size of b's root.
func (s *Session) rootSize(b *sizetree.Builder) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return b.Root().Size()
}

// finish builds b and formats its root.
func (s *Session) finish(b *sizetree.Builder, depth int) *model.TreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Build()
	return b.Format(b.Root(), depth)
}

// Open formats the node at idPath of the current tree.
func (s *Session) Open(idPath string, depth int) (*model.TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.builder == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no tree loaded")
	}
	return s.builder.Open(idPath, depth)
}

// DiffMode reports whether the current tree is a diff.
func (s *Session) DiffMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diffMode
}

// RootSize returns the size of the current tree, or 0.
func (s *Session) RootSize() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.builder == nil {
		return 0
	}
	return s.builder.Root().Size()
}

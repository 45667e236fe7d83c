package ndjson

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/size-analysis/internal/mock"
	"github.com/size-analysis/internal/parser"
	"github.com/size-analysis/internal/storage"
	"github.com/size-analysis/pkg/compression"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

const stream = `{"components":["core"],"total":300}
{"p":"dir/a.cc","c":0,"s":[{"n":"f1","b":100,"t":"t"},{"n":"f2","b":200,"t":"d"}]}
{"p":"dir/b.cc","c":0,"s":[]}`

// funcSource counts opens and delegates to open.
type funcSource struct {
	opens atomic.Int32
	open  func(ctx context.Context, n int32) (io.ReadCloser, error)
}

func (s *funcSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.open(ctx, s.opens.Add(1))
}

func (s *funcSource) Key() string { return "func" }

func staticSource(data []byte) *funcSource {
	return &funcSource{open: func(context.Context, int32) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

func collect(t *testing.T, d *Decoder) []string {
	t.Helper()
	var lines []string
	err := d.Lines(context.Background(), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	return lines
}

func TestDecoder_SplitsAcrossChunks(t *testing.T) {
	want := strings.Split(stream, "\n")

	for _, size := range []int{1, 7, 64, DefaultChunkSize} {
		d := NewDecoder(staticSource([]byte(stream)), WithChunkSize(size))
		assert.Equal(t, want, collect(t, d), "chunk size %d", size)
	}
}

func TestDecoder_ReplaysFromCache(t *testing.T) {
	src := staticSource([]byte(stream + "\n"))
	d := NewDecoder(src, WithChunkSize(16))

	var observed int
	d.Observe(func(chunk []byte) { observed += len(chunk) })

	first := collect(t, d)
	assert.True(t, d.Cached())
	second := collect(t, d)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.opens.Load())
	assert.Equal(t, len(stream)+1, observed)
	assert.Equal(t, int64(len(stream)+1), d.BytesRead())

	d.Abort()
	assert.False(t, d.Cached())
	collect(t, d)
	assert.Equal(t, int32(2), src.opens.Load())
}

func TestDecoder_Compressed(t *testing.T) {
	for _, typ := range []compression.Type{compression.TypeGzip, compression.TypeZstd} {
		t.Run(typ.String(), func(t *testing.T) {
			encoded, err := compression.Compress([]byte(stream), typ, compression.LevelFastest)
			require.NoError(t, err)

			d := NewDecoder(NewBlobSource(encoded), WithChunkSize(5))
			assert.Equal(t, strings.Split(stream, "\n"), collect(t, d))
		})
	}
}

func TestDecoder_CallbackErrorStopsPass(t *testing.T) {
	d := NewDecoder(staticSource([]byte(stream)))
	stop := errors.New("stop")

	calls := 0
	err := d.Lines(context.Background(), func([]byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
	assert.False(t, d.Cached())
}

func TestDecoder_NewFetchAbortsInFlight(t *testing.T) {
	firstLine := make(chan struct{})
	src := &funcSource{}
	src.open = func(ctx context.Context, n int32) (io.ReadCloser, error) {
		if n == 1 {
			pr, pw := io.Pipe()
			go func() {
				pw.Write([]byte("{\"total\":1}\n"))
				// never finishes; closed when the fetch is aborted
			}()
			return pr, nil
		}
		return io.NopCloser(strings.NewReader(stream)), nil
	}

	d := NewDecoder(src, WithChunkSize(8))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		var once sync.Once
		firstErr = d.Lines(context.Background(), func([]byte) error {
			once.Do(func() { close(firstLine) })
			return nil
		})
	}()

	select {
	case <-firstLine:
	case <-time.After(5 * time.Second):
		t.Fatal("first fetch produced no line")
	}

	lines := collect(t, d)
	wg.Wait()

	require.Error(t, firstErr)
	assert.True(t, errors.Is(firstErr, parser.ErrAborted))
	assert.True(t, apperrors.IsAborted(firstErr))
	assert.Len(t, lines, 3)
	assert.True(t, d.Cached())
}

func TestDecoder_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDecoder(staticSource([]byte(stream)), WithChunkSize(4))

	err := d.Lines(ctx, func([]byte) error {
		cancel()
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrAborted))
}

func TestDecoder_TransportFailure(t *testing.T) {
	broken := errors.New("connection reset")
	src := &funcSource{open: func(context.Context, int32) (io.ReadCloser, error) {
		return nil, broken
	}}

	err := NewDecoder(src).Lines(context.Background(), func([]byte) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrTransport))
	assert.ErrorIs(t, err, broken)
	assert.False(t, apperrors.IsAborted(err))
}

func TestDecode_Records(t *testing.T) {
	var meta *model.Meta
	var entries []*model.FileEntry
	h := parser.HandlerFuncs{
		Meta:      func(m *model.Meta) error { meta = m; return nil },
		FileEntry: func(fe *model.FileEntry) error { entries = append(entries, fe); return nil },
	}

	stats, err := parser.Decode(context.Background(), NewDecoder(staticSource([]byte(stream+"\n\n"))), h)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 300.0, meta.Total)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(2), stats.FileEntries)

	t.Run("malformed line", func(t *testing.T) {
		bad := stream + "\n{\"p\": oops}\n"
		_, err := parser.Decode(context.Background(), NewDecoder(staticSource([]byte(bad))), parser.HandlerFuncs{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, parser.ErrMalformedRecord))
		assert.Contains(t, err.Error(), "line 4")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parser.Decode(context.Background(), NewDecoder(staticSource(nil)), parser.HandlerFuncs{})
		assert.ErrorIs(t, err, parser.ErrEmptyInput)
	})

	t.Run("missing meta", func(t *testing.T) {
		_, err := parser.Decode(context.Background(), NewDecoder(staticSource([]byte("[1,2]\n"))), parser.HandlerFuncs{})
		assert.ErrorIs(t, err, parser.ErrMissingMeta)
	})
}

func TestResolve(t *testing.T) {
	store := &mock.MockStorage{}

	tests := []struct {
		input   string
		wantKey string
		wantErr bool
	}{
		{"https://example.com/size.ndjson", "https://example.com/size.ndjson", false},
		{"storage://builds/1/size.ndjson.gz", "storage://builds/1/size.ndjson.gz", false},
		{"cos:///builds/2.ndjson", "storage://builds/2.ndjson", false},
		{"s3://bucket-key", "storage://bucket-key", false},
		{"s3://", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			src, err := Resolve(tt.input, store, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, src.Key())
		})
	}

	t.Run("storage without store", func(t *testing.T) {
		_, err := Resolve("s3://x", nil, nil)
		assert.Error(t, err)
	})

	t.Run("storage detection", func(t *testing.T) {
		assert.True(t, IsStorageInput(" COS://a"))
		assert.True(t, IsStorageInput("storage://a"))
		assert.False(t, IsStorageInput("https://a"))
		assert.False(t, IsStorageInput("./a.ndjson"))
	})

	t.Run("local path", func(t *testing.T) {
		src, err := Resolve("file:///tmp/size.ndjson", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/size.ndjson", src.(*FileSource).Path)
	})
}

func TestSources(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/size.ndjson" {
				http.NotFound(w, r)
				return
			}
			io.WriteString(w, stream)
		}))
		defer srv.Close()

		d := NewDecoder(&HTTPSource{URL: srv.URL + "/size.ndjson"})
		assert.Len(t, collect(t, d), 3)

		err := NewDecoder(&HTTPSource{URL: srv.URL + "/missing"}).Lines(context.Background(), func([]byte) error { return nil })
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsTransportError(err))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "size.ndjson")
		require.NoError(t, os.WriteFile(path, []byte(stream), 0644))
		assert.Len(t, collect(t, NewDecoder(&FileSource{Path: path})), 3)
	})

	t.Run("storage", func(t *testing.T) {
		store := &mock.MockStorage{}
		store.ExpectDownload("builds/1.ndjson", io.NopCloser(strings.NewReader(stream)), nil).Once()

		d := NewDecoder(&StorageSource{Store: store, ObjectKey: "builds/1.ndjson"})
		assert.Len(t, collect(t, d), 3)
		assert.Len(t, collect(t, d), 3)
		store.AssertExpectations(t)

		missing := &mock.MockStorage{}
		missing.ExpectDownload("nope", nil, apperrors.New(apperrors.CodeNotFound, "object not found: nope"))
		err := NewDecoder(&StorageSource{Store: missing, ObjectKey: "nope"}).Lines(context.Background(), func([]byte) error { return nil })
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("blob fingerprint", func(t *testing.T) {
		a := NewBlobSource([]byte(stream))
		b := NewBlobSource([]byte(stream))
		c := NewBlobSource([]byte(stream + "\n"))
		assert.Equal(t, a.Key(), b.Key())
		assert.NotEqual(t, a.Key(), c.Key())
		assert.Len(t, Fingerprint(nil), 16)
	})
}

var _ storage.Storage = (*mock.MockStorage)(nil)

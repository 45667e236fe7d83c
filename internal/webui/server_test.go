package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocks "github.com/size-analysis/internal/mock"
	"github.com/size-analysis/internal/storage"
	"github.com/size-analysis/internal/worker"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

const sampleStream = `{"components":["core"],"total":300}
{"p":"a/one.cc","s":[{"n":"s1","b":30,"t":"t"}]}
{"p":"a/two.cc","s":[{"n":"s2","b":60,"t":"t"}]}
{"p":"b/three.cc","s":[{"n":"s3","b":210,"t":"d"}]}
`

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, id int64, action string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(worker.Request{ID: id, Action: action, Data: raw}))
}

// readUntil reads messages until one satisfies done.
func readUntil(t *testing.T, conn *websocket.Conn, done func(*worker.Message) bool) *worker.Message {
	t.Helper()
	for {
		var msg worker.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if done(&msg) {
			return &msg
		}
	}
}

func TestSocket_LoadBlobThenOpen(t *testing.T) {
	ts := newTestServer(t, Options{Worker: worker.Config{DenyFiles: true}})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte(sampleStream)))
	send(t, conn, 1, worker.ActionLoad, worker.LoadRequest{})

	final := readUntil(t, conn, (*worker.Message).Final)
	require.Empty(t, final.Error)
	require.NotNil(t, final.Root)
	assert.Equal(t, 300.0, final.Root.Size)
	assert.NotEmpty(t, final.LoadID)
	require.Len(t, final.Root.Children, 2)
	assert.Equal(t, "b", final.Root.Children[0].IDPath)

	send(t, conn, 2, worker.ActionOpen, "a")
	reply := readUntil(t, conn, func(m *worker.Message) bool { return m.ID == 2 })
	require.NotNil(t, reply.Result)
	assert.Equal(t, 90.0, reply.Result.Size)
	assert.Len(t, reply.Result.Children, 2)

	send(t, conn, 3, worker.ActionOpen, "nope")
	reply = readUntil(t, conn, func(m *worker.Message) bool { return m.ID == 3 })
	assert.Equal(t, apperrors.CodeNotFound, reply.Code)
}

func TestSocket_RejectsBadFrames(t *testing.T) {
	ts := newTestServer(t, Options{Worker: worker.Config{DenyFiles: true}})
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var msg worker.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, apperrors.CodeInvalidInput, msg.Code)

	send(t, conn, 4, worker.ActionLoad, worker.LoadRequest{Input: "/etc/passwd"})
	final := readUntil(t, conn, (*worker.Message).Final)
	assert.Equal(t, apperrors.CodeInvalidInput, final.Code)
	assert.Nil(t, final.Root)
}

func TestListLoads(t *testing.T) {
	repo := &mocks.MockLoadRepository{}
	records := []*model.LoadRecord{{ID: "l2", Status: model.LoadStatusCompleted}, {ID: "l1", Status: model.LoadStatusAborted}}
	repo.On("ListLoads", mock.Anything, "s1", 5).Return(records, nil)
	ts := newTestServer(t, Options{Loads: repo})

	resp, err := http.Get(ts.URL + "/api/loads?session=s1&limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []*model.LoadRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "l2", got[0].ID)
	repo.AssertExpectations(t)
}

func TestLoadsAPI_Errors(t *testing.T) {
	repo := &mocks.MockLoadRepository{}
	repo.On("GetLoad", mock.Anything, "missing").Return(nil, apperrors.New(apperrors.CodeNotFound, "load missing not found"))
	repo.On("GetLoad", mock.Anything, "l1").Return(&model.LoadRecord{ID: "l1"}, nil)

	tests := []struct {
		name   string
		opts   Options
		path   string
		status int
		code   string
	}{
		{"disabled", Options{}, "/api/loads", http.StatusServiceUnavailable, apperrors.CodeConfigError},
		{"bad limit", Options{Loads: repo}, "/api/loads?limit=x", http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"missing", Options{Loads: repo}, "/api/loads/missing", http.StatusNotFound, apperrors.CodeNotFound},
		{"found", Options{Loads: repo}, "/api/loads/l1", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.opts)
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				var body errorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.code, body.Code)
			}
		})
	}
}

func TestUpload_ThenLoadFromStorage(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ts := newTestServer(t, Options{Worker: worker.Config{Store: store}})

	resp, err := http.Post(ts.URL+"/api/upload", "application/x-ndjson", strings.NewReader(sampleStream))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var up uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	assert.Equal(t, "storage://uploads/"+up.Fingerprint+".ndjson", up.Input)
	assert.Equal(t, len(sampleStream), up.Size)

	conn := dial(t, ts)
	send(t, conn, 1, worker.ActionLoad, worker.LoadRequest{Input: up.Input, Options: "min_size=100"})
	final := readUntil(t, conn, (*worker.Message).Final)
	require.Empty(t, final.Error)
	assert.Equal(t, 210.0, final.Root.Size)
}

func TestUpload_Errors(t *testing.T) {
	t.Run("no storage", func(t *testing.T) {
		ts := newTestServer(t, Options{})
		resp, err := http.Post(ts.URL+"/api/upload", "application/x-ndjson", strings.NewReader(sampleStream))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("empty", func(t *testing.T) {
		ts := newTestServer(t, Options{Worker: worker.Config{Store: &mocks.MockStorage{}}})
		resp, err := http.Post(ts.URL+"/api/upload", "application/x-ndjson", strings.NewReader(""))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		ts := newTestServer(t, Options{Worker: worker.Config{Store: &mocks.MockStorage{}}, MaxUploadSize: 8})
		resp, err := http.Post(ts.URL+"/api/upload", "application/x-ndjson", strings.NewReader(sampleStream))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mocks.MockStorage{}
		store.On("Upload", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(apperrors.New(apperrors.CodeStorageError, "bucket gone"))
		ts := newTestServer(t, Options{Worker: worker.Config{Store: store}})
		resp, err := http.Post(ts.URL+"/api/upload", "application/x-ndjson", strings.NewReader(sampleStream))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		store.AssertExpectations(t)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	ts := newTestServer(t, Options{Health: func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return apperrors.New(apperrors.CodeDatabaseError, "db down")
	}})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy.Store(false)
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "size_viewer_webui_connections")
}

package checkpoint

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrell/harbord"
)

var testHash = strings.Repeat("ab", 32)

// buildSnapshot produces a snapshot fixture: a Badger backup stream of a
// store holding the given records.
func buildSnapshot(t *testing.T, records map[string]string) []byte {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		for k, v := range records {
			if err := txn.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))

	var buf bytes.Buffer
	_, err = db.Backup(&buf, 0)
	require.NoError(t, err)
	return buf.Bytes()
}

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestLoad_Success(t *testing.T) {
	snapshot := buildSnapshot(t, map[string]string{
		"anchor/0000000042": `{"block":{"hash":"` + testHash + `","height":42}}`,
		"anchor/0000000099": `{"block":{"hash":"ffff","height":99}}`,
		"meta/version":      "1",
	})
	ts := serveBytes(t, snapshot)
	dir := t.TempDir()

	progress := make(chan Progress, 64)
	l := &Loader{Log: zerolog.Nop()}
	anchor, err := l.Load(context.Background(), ts.URL, dir, progress)
	require.NoError(t, err)

	// First anchor in key order wins.
	assert.Equal(t, testHash, anchor.Block.Hash)
	assert.Equal(t, uint32(42), anchor.Block.Height)

	// Progress is monotonic and ends at the declared total, which matches
	// the bytes written to disk.
	var last Progress
	prev := int64(0)
	for len(progress) > 0 {
		p := <-progress
		require.GreaterOrEqual(t, p.Downloaded, prev)
		prev = p.Downloaded
		last = p
	}
	require.Equal(t, int64(len(snapshot)), last.Total)
	require.Equal(t, last.Total, last.Downloaded)

	info, err := os.Stat(filepath.Join(dir, SnapshotFile))
	require.NoError(t, err)
	assert.Equal(t, int64(len(snapshot)), info.Size())
}

func TestLoad_NilProgress(t *testing.T) {
	snapshot := buildSnapshot(t, map[string]string{
		"anchor/0000000001": `{"block":{"hash":"` + testHash + `","height":1}}`,
	})
	ts := serveBytes(t, snapshot)

	l := &Loader{}
	anchor, err := l.Load(context.Background(), ts.URL, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), anchor.Block.Height)
}

// TestLoad_NoAnchors verifies that an anchor-free snapshot yields the
// distinct ErrNoAnchors and leaves no scratch directories behind.
func TestLoad_NoAnchors(t *testing.T) {
	snapshot := buildSnapshot(t, map[string]string{"meta/height": "7"})
	ts := serveBytes(t, snapshot)

	before, err := filepath.Glob(filepath.Join(os.TempDir(), "harbord-anchors-*"))
	require.NoError(t, err)

	l := &Loader{}
	_, err = l.Load(context.Background(), ts.URL, t.TempDir(), nil)
	require.ErrorIs(t, err, harbord.ErrNoAnchors)

	after, err := filepath.Glob(filepath.Join(os.TempDir(), "harbord-anchors-*"))
	require.NoError(t, err)
	assert.Len(t, after, len(before), "scratch extraction dirs were not cleaned up")
}

func TestLoad_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	l := &Loader{}
	_, err := l.Load(context.Background(), ts.URL, t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// TestLoad_MissingContentLength verifies that a chunked response with no
// declared length is rejected up front.
func TestLoad_MissingContentLength(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Flushing before the first write commits the response without a
		// Content-Length header.
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("data"))
	}))
	t.Cleanup(ts.Close)

	l := &Loader{}
	_, err := l.Load(context.Background(), ts.URL, t.TempDir(), nil)
	require.ErrorIs(t, err, harbord.ErrMissingLength)
}

func TestLoad_TruncatedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	t.Cleanup(ts.Close)

	l := &Loader{}
	_, err := l.Load(context.Background(), ts.URL, t.TempDir(), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, harbord.ErrNoAnchors)
}

func TestRootAnchor_PrunePoint(t *testing.T) {
	a := RootAnchor{Block: BlockRef{Hash: "c0ffee", Height: 123456}}
	assert.Equal(t, "c0ffee:123456", a.PrunePoint())
}

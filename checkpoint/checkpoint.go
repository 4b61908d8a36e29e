// Package checkpoint downloads a bootstrap snapshot of the protocol
// datastore and extracts the root anchor that seeds the light client's
// prune point.
//
// The snapshot is fetched with one streaming GET and written to disk
// chunk by chunk, so it is never held in memory. There is no retry or
// resume: a failed download is retried in full by the caller.
package checkpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mkrell/harbord"
)

// SnapshotFile is the on-disk name of the downloaded snapshot inside the
// target directory.
const SnapshotFile = "protocol.sdb"

// copyChunk is the download buffer size.
const copyChunk = 64 * 1024

// Progress reports download progress. Downloaded is monotonically
// non-decreasing across reports; Total is the declared content length.
type Progress struct {
	Downloaded int64
	Total      int64
}

// BlockRef identifies a block by hash and height.
type BlockRef struct {
	Hash   string `json:"hash"` // hex encoded
	Height uint32 `json:"height"`
}

// RootAnchor is the anchor record extracted from a snapshot: the block
// the light client may prune to. Immutable once produced.
type RootAnchor struct {
	Block BlockRef `json:"block"`
}

// PrunePoint renders the anchor in the light client's --prune-point
// flag format.
func (a RootAnchor) PrunePoint() string {
	return fmt.Sprintf("%s:%d", a.Block.Hash, a.Block.Height)
}

// Loader fetches snapshots. The zero value uses http.DefaultClient and
// discards diagnostics.
type Loader struct {
	// Client overrides the HTTP client used for the download.
	Client *http.Client

	// Log receives diagnostics.
	Log zerolog.Logger
}

// Load downloads the snapshot at url into dir and extracts the first
// available root anchor from it.
//
// The server must report a content length; unknown-length sources are
// rejected with harbord.ErrMissingLength. After each written chunk a
// Progress is offered to progress (if non-nil), best effort — a full
// progress channel drops the report rather than slowing the download.
// A snapshot with zero anchor records fails with harbord.ErrNoAnchors.
func (l *Loader) Load(ctx context.Context, url, dir string, progress chan<- Progress) (*RootAnchor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create data dir: %w", err)
	}
	path := filepath.Join(dir, SnapshotFile)

	total, err := l.download(ctx, url, path, progress)
	if err != nil {
		return nil, err
	}
	l.Log.Info().Str("path", path).Int64("bytes", total).Msg("snapshot downloaded")

	// Extraction is CPU-bound but runs only after the download has
	// finished, and Load itself runs on the caller's goroutine — it
	// never shares a thread of control with the supervisor loop.
	anchor, err := extractAnchor(path)
	if err != nil {
		return nil, err
	}
	return anchor, nil
}

func (l *Loader) download(ctx context.Context, url, path string, progress chan<- Progress) (int64, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("checkpoint: server returned %s", resp.Status)
	}
	total := resp.ContentLength
	if total < 0 {
		return 0, harbord.ErrMissingLength
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: create snapshot file: %w", err)
	}
	defer f.Close()

	var downloaded int64
	buf := make([]byte, copyChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return 0, fmt.Errorf("checkpoint: write chunk: %w", werr)
			}
			downloaded += int64(n)
			if progress != nil {
				select {
				case progress <- Progress{Downloaded: downloaded, Total: total}:
				default:
					// Best effort; a slow observer never stalls the download.
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, fmt.Errorf("checkpoint: read chunk: %w", rerr)
		}
	}
	if downloaded != total {
		return 0, fmt.Errorf("checkpoint: truncated download: got %d of %d bytes", downloaded, total)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("checkpoint: flush snapshot file: %w", err)
	}
	return downloaded, nil
}

package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/mkrell/harbord"
)

// anchorPrefix is the key prefix of anchor records inside the snapshot
// store. Keys sort ascending, so the first record under the prefix is
// the snapshot's oldest anchor — the prune point it was built for.
var anchorPrefix = []byte("anchor/")

// extractAnchor restores the snapshot (a Badger backup stream) into a
// throwaway store and reads the first anchor record. The scratch
// directory is removed whether or not extraction succeeds.
func extractAnchor(snapshotPath string) (*RootAnchor, error) {
	scratch, err := os.MkdirTemp("", "harbord-anchors-*")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	db, err := badger.Open(badger.DefaultOptions(scratch).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open anchor store: %w", err)
	}
	defer db.Close()

	f, err := os.Open(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open snapshot: %w", err)
	}
	defer f.Close()
	if err := db.Load(f, 16); err != nil {
		return nil, fmt.Errorf("checkpoint: restore snapshot: %w", err)
	}

	var anchor *RootAnchor
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         anchorPrefix,
			PrefetchValues: true,
			PrefetchSize:   1,
		})
		defer it.Close()

		it.Rewind()
		if !it.ValidForPrefix(anchorPrefix) {
			return nil
		}
		return it.Item().Value(func(v []byte) error {
			var a RootAnchor
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("checkpoint: decode anchor record: %w", err)
			}
			anchor = &a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, harbord.ErrNoAnchors
	}
	return anchor, nil
}

package partition

import (
	"encoding/json"

	"github.com/tidwall/buntdb"

	"github.com/Thema-AI/web-index/objstore"
)

// listCache memoizes Backend.List results per MonthDir, backed by an
// in-memory github.com/tidwall/buntdb database. Every write through
// Manager invalidates the affected month's entry, so the cache can never
// observe a write it didn't itself cause — reads of months nobody is
// writing to skip repeated backend listings entirely, which matters most
// for the eventually-consistent cloud backends (S3, GCS, Azure).
type listCache struct {
	db *buntdb.DB
}

func newListCache() (*listCache, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	return &listCache{db: db}, nil
}

func (c *listCache) get(monthDir string) ([]objstore.ObjectInfo, bool) {
	var infos []objstore.ObjectInfo
	found := false
	_ = c.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(monthDir)
		if err != nil {
			return nil
		}
		if jsonErr := json.Unmarshal([]byte(val), &infos); jsonErr == nil {
			found = true
		}
		return nil
	})
	return infos, found
}

func (c *listCache) put(monthDir string, infos []objstore.ObjectInfo) {
	encoded, err := json.Marshal(infos)
	if err != nil {
		return
	}
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(monthDir, string(encoded), nil)
		return err
	})
}

func (c *listCache) invalidate(monthDir string) {
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(monthDir)
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

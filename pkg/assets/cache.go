package assets

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/bialy-nvr/compositor/pkg/media"
)

const assetBucket = "images"

// Cache is a durable store of registered image assets' raw source
// bytes, keyed by renderer id and target resolution, so a restart can
// re-register an asset without its original source; the bytes are
// decoded and resized again on restore.
// Grounded on the teacher's pkg/log.DB: same bolt.Open/Options{Timeout}/
// CreateBucketIfNotExists/WaitGroup-on-ctx.Done() shape, applied to
// asset bytes instead of log entries.
type Cache struct {
	dbPath string
	db     *bolt.DB
	wg     *sync.WaitGroup
}

// NewCache returns an unopened Cache; call Init to open the database
// file and start its ctx-driven close goroutine.
func NewCache(dbPath string, wg *sync.WaitGroup) *Cache {
	return &Cache{dbPath: dbPath, wg: wg}
}

// Init opens the backing database and arranges for it to close once
// ctx is done.
func (c *Cache) Init(ctx context.Context) error {
	db, err := bolt.Open(c.dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("could not open asset cache: %w: %v", err, c.dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(assetBucket))
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("could not create asset bucket: %w", err)
	}

	c.db = db
	c.wg.Add(1)
	go func() {
		<-ctx.Done()
		db.Close()
		c.wg.Done()
	}()
	return nil
}

// Put stores the raw source bytes for id at resolution res.
func (c *Cache) Put(id media.RendererId, res media.Resolution, data []byte) error {
	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(assetBucket)).Put(encodeAssetKey(id, res), data)
	})
}

// Get returns the cached bytes for id at resolution res, if present.
func (c *Cache) Get(id media.RendererId, res media.Resolution) ([]byte, bool, error) {
	if c.db == nil {
		return nil, false, nil
	}
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(assetBucket)).Get(encodeAssetKey(id, res)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil, err
}

// Delete evicts every cached resolution stored for id.
func (c *Cache) Delete(id media.RendererId) error {
	if c.db == nil {
		return nil
	}
	prefix := []byte(string(id) + "|")
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(assetBucket))
		cur := b.Cursor()
		var keys [][]byte
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func encodeAssetKey(id media.RendererId, res media.Resolution) []byte {
	return []byte(fmt.Sprintf("%s|%dx%d", id, res.Width, res.Height))
}

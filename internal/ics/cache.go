package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheMetaFile = "meta.json"
	cacheBodyFile = "body.ics"
)

// cacheMeta is the validator data kept next to a cached feed body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// feedCache stores one directory per feed URL under root.
type feedCache struct {
	root string
}

type cacheEntry struct {
	dir string
}

type cachedFeed struct {
	meta cacheMeta
	body []byte
}

// open returns the entry for url, creating its directory. The directory
// name is the first 16 hex chars of sha256(url).
func (c feedCache) open(url string) (cacheEntry, error) {
	sum := sha256.Sum256([]byte(url))
	dir := filepath.Join(c.root, hex.EncodeToString(sum[:8]))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return cacheEntry{}, err
	}
	return cacheEntry{dir: dir}, nil
}

// load returns whatever is cached; missing or corrupt files yield zero values.
func (e cacheEntry) load() cachedFeed {
	var feed cachedFeed
	if data, err := os.ReadFile(filepath.Join(e.dir, cacheMetaFile)); err == nil {
		if json.Unmarshal(data, &feed.meta) != nil {
			feed.meta = cacheMeta{}
		}
	}
	feed.body, _ = os.ReadFile(filepath.Join(e.dir, cacheBodyFile))
	return feed
}

// store writes the body before the metadata so metadata never refers to a
// body that is not there.
func (e cacheEntry) store(meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(e.dir, cacheBodyFile), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.dir, cacheMetaFile), data, 0o600)
}

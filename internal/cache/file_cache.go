package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verdantia/earthscout/internal/properties"
)

// FileCache persists JSON entries under <ROOT_PATH>/data/<subDir>. Entries
// carry a checksum so a truncated or hand-edited file reads as a miss, not
// as corrupt data.
type FileCache[T any] struct {
	dir string
}

type entry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

func NewFileCache[T any](subDir string) *FileCache[T] {
	return &FileCache[T]{dir: filepath.Join(properties.RootPath(), "data", subDir)}
}

// Key derives a stable cache key from the parameters that define the
// cached computation.
func (fc *FileCache[T]) Key(params ...any) string {
	var raw string
	for _, param := range params {
		raw += fmt.Sprintf("%v_", param)
	}
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (fc *FileCache[T]) Get(key string) (T, bool) {
	var zero T

	data, err := os.ReadFile(filepath.Join(fc.dir, key+".json"))
	if err != nil {
		return zero, false
	}

	var e entry[T]
	if err := json.Unmarshal(data, &e); err != nil {
		return zero, false
	}
	if e.Checksum != checksum(e.Data) {
		return zero, false
	}
	return e.Data, true
}

func (fc *FileCache[T]) Set(key string, data T) error {
	if err := os.MkdirAll(fc.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}

	payload, err := json.Marshal(entry[T]{
		Data:      data,
		CreatedAt: time.Now(),
		Checksum:  checksum(data),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %v", err)
	}

	target := filepath.Join(fc.dir, key+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %v", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp cache file: %v", err)
	}
	return nil
}

func checksum[T any](data T) string {
	payload, _ := json.Marshal(data)
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

package cache

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

// gzipThreshold matches the spec's "payloads > 1000 bytes" compression rule.
const gzipThreshold = 1000

// fileStore is the L2 fallback when no shared key-value store is configured:
// one file per key, path derived from md5(key), written atomically via a
// temp file + rename. Payloads over gzipThreshold are gzip-compressed and
// stored with a .gz suffix; readers prefer the .gz variant when both exist.
type fileStore struct {
	dir string
}

func newFileStore(dir string) *fileStore {
	return &fileStore{dir: dir}
}

func (f *fileStore) pathFor(key string) (plain, gz string) {
	sum := md5.Sum([]byte(key))
	name := hex.EncodeToString(sum[:])
	base := filepath.Join(f.dir, name[:2], name)
	return base, base + ".gz"
}

// get reads the value for key, if present, regardless of age. Expiry is not
// checked here; fileTier stores an expiry inside each value and checks it.
func (f *fileStore) get(key string) ([]byte, bool, error) {
	plainPath, gzPath := f.pathFor(key)

	if _, err := os.Stat(gzPath); err == nil {
		raw, err := os.ReadFile(gzPath)
		if err != nil {
			return nil, false, err
		}
		data, err := gunzip(raw)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}

	if _, err := os.Stat(plainPath); err == nil {
		data, err := os.ReadFile(plainPath)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}

	return nil, false, nil
}

func (f *fileStore) put(key string, value []byte) error {
	plainPath, gzPath := f.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(plainPath), 0o755); err != nil {
		return err
	}

	targetPath := plainPath
	payload := value
	if len(value) > gzipThreshold {
		compressed, err := gzipBytes(value)
		if err != nil {
			return err
		}
		targetPath = gzPath
		payload = compressed
		_ = os.Remove(plainPath)
	} else {
		_ = os.Remove(gzPath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, targetPath)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

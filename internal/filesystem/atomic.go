package filesystem

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TempPrefix marks in-flight temp files. Anything carrying it is not a
// complete cache file.
const TempPrefix = ".tmp-"

// WriteFileAtomic writes data to dir/name through a temp file in the same
// directory followed by a rename, replacing any existing file. Readers see
// either the old content or the new content, never a partial write.
func WriteFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+name+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	_ = syncDirBestEffort(dir)
	return nil
}

// IsTempFile reports whether name belongs to an unfinished atomic write.
func IsTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), TempPrefix)
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

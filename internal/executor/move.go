// file: internal/executor/move.go
// version: 1.0.0
// guid: 8a1c3e5b-7d9f-4b2a-8c4e-0f2a4c6e8b0d

package executor

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// ProgressFunc receives byte progress for long copies and step progress for
// the overall plan. total is 0 when unknown.
type ProgressFunc func(label string, done, total int64)

// moveFile renames src to dst, falling back to copy-verify-remove when the
// two paths sit on different volumes.
func moveFile(src, dst string, progress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return copyVerifyRemove(src, dst, progress)
}

// copyVerifyRemove copies src to a temp sibling of dst, fsyncs, verifies the
// written bytes against the source checksum, renames into place, then
// removes the source. On checksum mismatch the partial copy is removed and
// the source is kept.
func copyVerifyRemove(src, dst string, progress ProgressFunc) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	srcHash := sha256.New()
	var w io.Writer = io.MultiWriter(out, srcHash)
	if progress != nil {
		w = io.MultiWriter(w, &progressWriter{label: filepath.Base(dst), total: info.Size(), fn: progress})
	}
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, info.Mode()); err != nil {
		os.Remove(tmp)
		return err
	}

	wantSum := fmt.Sprintf("%x", srcHash.Sum(nil))
	gotSum, err := checksumFile(tmp)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if gotSum != wantSum {
		os.Remove(tmp)
		return &CopyVerificationError{Src: src, Dst: dst}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// checksumFile is a variable so tests can inject verification faults.
var checksumFile = func(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

type progressWriter struct {
	label string
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	p.fn(p.label, p.done, p.total)
	return len(b), nil
}

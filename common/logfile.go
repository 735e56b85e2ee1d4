// Package common provides shared constants, types, and utilities
// used across the seaside NetworkManager plugin.
package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// rotatingFile is an append-only log file that compresses itself into a
// timestamped .gz backup once it reaches maxSize. Callers serialize access.
type rotatingFile struct {
	path       string
	file       *os.File
	size       int64
	maxSize    int64
	maxBackups int
	now        func() time.Time
}

func openRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	r := &rotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
		now:        time.Now,
	}
	if info, err := os.Stat(path); err == nil && info.Size() >= maxSize {
		r.rotate()
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		r.file.Close()
		r.file = nil
		r.rotate()
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// rotate moves the current file aside and prunes old backups. A backup
// that cannot be compressed is kept uncompressed.
func (r *rotatingFile) rotate() {
	rotated := fmt.Sprintf("%s.%s.gz", r.path, r.now().Format("20060102-150405.000"))
	if err := compressFile(r.path, rotated); err != nil {
		os.Remove(rotated)
		os.Rename(r.path, strings.TrimSuffix(rotated, ".gz"))
	} else {
		os.Remove(r.path)
	}
	r.pruneBackups()
}

func (r *rotatingFile) pruneBackups() {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= r.maxBackups {
		return
	}
	// Backup names embed the rotation time, so lexical order is age order.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-r.maxBackups] {
		os.Remove(old)
	}
}

// compressFile gzips src into dst.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

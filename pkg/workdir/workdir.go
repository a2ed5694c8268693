// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workdir

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📊 FileStatus represents what happened to a file during a run
type FileStatus int

const (
	StatusUnknown  FileStatus = iota
	StatusNew                 // written for the first time this run
	StatusReplaced            // overwrote an existing file
	StatusDeleted             // removed
)

// String returns a string representation of FileStatus
func (s FileStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusReplaced:
		return "replaced"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// 📄 FileInfo contains metadata about a file written during a run
type FileInfo struct {
	Path     string     // path relative to the manager's base directory
	Status   FileStatus // what happened to it
	Size     int64      // bytes written
	Checksum string     // sha256 of the content
	Error    error      // any error associated with this file
}

// 💾 FileManager handles the file system side of a workflow run
type FileManager interface {
	WriteFileAtomic(ctx context.Context, path string, content []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	DeleteFile(ctx context.Context, path string) error
	FileExists(ctx context.Context, path string) (bool, error)
	RemoveDir(ctx context.Context, path string) error
}

var _ FileManager = (*Manager)(nil)

// 🔧 Manager owns a base directory and tracks everything written beneath it
type Manager struct {
	baseDir   string
	formatter FileFormatter

	mu    sync.RWMutex
	files map[string]FileInfo
}

// 🏭 New creates a manager rooted at baseDir
func New(baseDir string) *Manager {
	return &Manager{
		baseDir:   filepath.Clean(baseDir),
		formatter: NewDefaultFileFormatter(),
		files:     make(map[string]FileInfo),
	}
}

// BaseDir returns the root this manager writes under
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Path resolves path against the base directory. Absolute paths are returned as is.
func (m *Manager) Path(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.baseDir, path)
}

func calculateChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// WriteFileAtomic writes content to a sibling temp file and renames it into place,
// creating parent directories as needed. Readers never observe a partial file.
func (m *Manager) WriteFileAtomic(ctx context.Context, path string, content []byte) error {
	absPath := m.Path(path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	existed, err := m.FileExists(ctx, absPath)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".*.tmp")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("setting temp file mode: %w", err)
	}

	if err := os.Rename(tempPath, absPath); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	status := StatusNew
	if existed {
		status = StatusReplaced
	}
	m.TrackFile(ctx, path, FileInfo{
		Status:   status,
		Size:     int64(len(content)),
		Checksum: calculateChecksum(content),
	})

	return nil
}

func (m *Manager) ReadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(m.Path(path))
	if err != nil {
		return nil, errors.Errorf("reading file: %w", err)
	}
	return content, nil
}

func (m *Manager) DeleteFile(ctx context.Context, path string) error {
	if err := os.Remove(m.Path(path)); err != nil {
		return errors.Errorf("deleting file: %w", err)
	}
	m.TrackFile(ctx, path, FileInfo{Status: StatusDeleted})
	return nil
}

func (m *Manager) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(m.Path(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Errorf("checking file existence: %w", err)
}

func (m *Manager) RemoveDir(ctx context.Context, path string) error {
	if err := os.RemoveAll(m.Path(path)); err != nil {
		return errors.Errorf("removing directory: %w", err)
	}
	return nil
}

// TrackFile records info for path and logs a one-line summary at debug level
func (m *Manager) TrackFile(ctx context.Context, path string, info FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.Path = path
	m.files[path] = info

	msg := m.formatter.FormatFileOperation(path, info.Status)
	if info.Error != nil {
		msg = m.formatter.FormatError(info.Error)
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Int64("size", info.Size).Msg(msg)
}

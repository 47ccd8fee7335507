package storage

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"speakup/internal/apperr"
)

const defaultAudioExt = ".webm"

// AudioStore places conversation audio under <baseDir>/<conversationID>/.
// Paths handed out are relative to baseDir and always use forward slashes.
type AudioStore struct {
	baseDir string
	now     func() time.Time
	mu      sync.Mutex
}

func NewAudioStore(baseDir string) *AudioStore {
	return &AudioStore{baseDir: baseDir, now: time.Now}
}

// BaseDir returns the absolute or working-directory-relative root.
func (s *AudioStore) BaseDir() string {
	return s.baseDir
}

// SaveMultipart stores an uploaded form file.
func (s *AudioStore) SaveMultipart(conversationID string, file *multipart.FileHeader) (string, int64, error) {
	src, err := file.Open()
	if err != nil {
		return "", 0, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()
	return s.Save(conversationID, file.Filename, src)
}

// Save writes r to a temporary file and renames it to
// <conversationID>/<unixMillis><ext> once fully written. A zero-byte upload is
// discarded and fails with apperr.ErrInvalidAudio.
func (s *AudioStore) Save(conversationID, filename string, r io.Reader) (string, int64, error) {
	if conversationID == "" || strings.ContainsAny(conversationID, `/\`) || conversationID == ".." {
		return "", 0, fmt.Errorf("%w: bad conversation id %q", apperr.ErrInvalidArgument, conversationID)
	}
	dir := filepath.Join(s.baseDir, conversationID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create audio directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	size, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to write audio: %w", err)
	}
	if size == 0 {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("%w: uploaded audio is empty", apperr.ErrInvalidAudio)
	}

	ext := audioExt(filename)
	s.mu.Lock()
	defer s.mu.Unlock()
	millis := s.now().UnixMilli()
	var name string
	for {
		name = fmt.Sprintf("%d%s", millis, ext)
		if _, statErr := os.Stat(filepath.Join(dir, name)); os.IsNotExist(statErr) {
			break
		}
		millis++
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to move audio into place: %w", err)
	}

	rel := path.Join(conversationID, name)
	log.Printf("[Audio] Stored %s (%d bytes)", rel, size)
	return rel, size, nil
}

// Resolve maps a stored relative path to a filesystem path under baseDir.
func (s *AudioStore) Resolve(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", fmt.Errorf("%w: empty audio path", apperr.ErrInvalidArgument)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Relative converts an absolute path under baseDir back to its stored form.
func (s *AudioStore) Relative(abs string) (string, error) {
	rel, err := filepath.Rel(s.baseDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside the audio store", apperr.ErrInvalidArgument, abs)
	}
	return filepath.ToSlash(rel), nil
}

// Size returns the stored file size, failing with apperr.ErrInvalidAudio when empty.
func (s *AudioStore) Size(rel string) (int64, error) {
	p, err := s.Resolve(rel)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("failed to stat audio: %w", err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s is empty", apperr.ErrInvalidAudio, rel)
	}
	return info.Size(), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *AudioStore) Remove(rel string) error {
	p, err := s.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func audioExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return defaultAudioExt
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return defaultAudioExt
		}
	}
	return ext
}

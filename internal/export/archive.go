// Package export renders a conversation for download: its learner recordings
// as a zip archive and its transcript as a spreadsheet.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"

	"speakup/internal/apperr"
	"speakup/internal/model"
)

// Resolver maps a stored audio path to a file on disk.
type Resolver func(rel string) (string, error)

// WriteAudioArchive streams a zip of the recordings to w. Entries are named
// <messageId>-<basename>.
func WriteAudioArchive(w io.Writer, files []model.AudioFile, resolve Resolver) error {
	if len(files) == 0 {
		return fmt.Errorf("no audio recordings for this session: %w", apperr.ErrNotFound)
	}

	zw := zip.NewWriter(w)
	for _, f := range files {
		if err := addFile(zw, f, resolve); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, f model.AudioFile, resolve Resolver) error {
	abs, err := resolve(f.Path)
	if err != nil {
		return err
	}
	src, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("failed to open recording %s: %w", f.Path, err)
	}
	defer src.Close()

	// audio is already compressed
	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.MessageID.String() + "-" + path.Base(f.Path),
		Method:   zip.Store,
		Modified: f.CreatedAt,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to archive recording %s: %w", f.Path, err)
	}
	return nil
}

package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"speakup/internal/apperr"
	"speakup/internal/model"
)

func TestWriteAudioArchive(t *testing.T) {
	base := t.TempDir()
	conv := uuid.New().String()
	if err := os.MkdirAll(filepath.Join(base, conv), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, conv, "1700000000000.webm"), []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, conv, "1700000005000.ogg"), []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolve := func(rel string) (string, error) { return filepath.Join(base, filepath.FromSlash(rel)), nil }

	m1, m2 := uuid.New(), uuid.New()
	files := []model.AudioFile{
		{MessageID: m1, Path: conv + "/1700000000000.webm", CreatedAt: time.Now()},
		{MessageID: m2, Path: conv + "/1700000005000.ogg", CreatedAt: time.Now()},
	}

	var buf bytes.Buffer
	if err := WriteAudioArchive(&buf, files, resolve); err != nil {
		t.Fatalf("WriteAudioArchive() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		m1.String() + "-1700000000000.webm": "first",
		m2.String() + "-1700000005000.ogg":  "second",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(want))
	}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if want[zf.Name] != string(body) {
			t.Errorf("entry %s = %q, want %q", zf.Name, body, want[zf.Name])
		}
	}
}

func TestWriteAudioArchiveErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAudioArchive(&buf, nil, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty list error = %v, want not found", err)
	}

	missing := []model.AudioFile{{MessageID: uuid.New(), Path: "x/gone.webm"}}
	resolve := func(rel string) (string, error) { return filepath.Join(t.TempDir(), rel), nil }
	if err := WriteAudioArchive(&buf, missing, resolve); err == nil {
		t.Error("missing file should fail")
	}
}

func TestWriteTranscriptWorkbook(t *testing.T) {
	dur := 3.25
	summary := "Clear answers."
	created := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	snap := &model.Snapshot{
		ID: uuid.New(),
		Messages: []model.Message{
			{Role: model.RoleAI, Content: "Tell me about yourself.", CreatedAt: created},
			{Role: model.RoleUser, Content: "I am a nurse.", DurationSeconds: &dur, CreatedAt: created.Add(time.Second)},
		},
		Evaluation: &model.Evaluation{GrammarScore: 7.5, VocabularyScore: 6, Summary: &summary},
	}

	var buf bytes.Buffer
	if err := WriteTranscriptWorkbook(&buf, snap); err != nil {
		t.Fatalf("WriteTranscriptWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(transcriptSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("transcript rows = %d, want 3", len(rows))
	}
	if rows[1][1] != "Partner" || rows[2][1] != "Learner" || rows[2][2] != "I am a nurse." || rows[2][3] != "3.25" {
		t.Errorf("transcript rows = %v", rows)
	}
	if rows[1][0] != "2026-02-03T10:00:00Z" {
		t.Errorf("time cell = %q", rows[1][0])
	}

	grammar, err := f.GetCellValue(evaluationSheet, "B4")
	if err != nil || grammar != "7.5" {
		t.Errorf("grammar cell = %q, %v", grammar, err)
	}
	if got, _ := f.GetCellValue(evaluationSheet, "B6"); got != summary {
		t.Errorf("summary cell = %q", got)
	}
}

func TestWriteTranscriptWorkbookWithoutEvaluation(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTranscriptWorkbook(&buf, &model.Snapshot{}); err != nil {
		t.Fatalf("WriteTranscriptWorkbook() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if got, _ := f.GetCellValue(evaluationSheet, "A1"); got != "No evaluation yet" {
		t.Errorf("A1 = %q", got)
	}
}

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"speakup/internal/model"
)

const (
	transcriptSheet = "Transcript"
	evaluationSheet = "Evaluation"
)

// WriteTranscriptWorkbook writes an xlsx workbook with the ordered transcript
// and the current evaluation of a conversation.
func WriteTranscriptWorkbook(w io.Writer, snap *model.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transcriptSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(transcriptSheet, "A1", &[]interface{}{"Time", "Speaker", "Text", "Duration (s)"}); err != nil {
		return err
	}
	for i, m := range snap.Messages {
		var duration interface{}
		if m.DurationSeconds != nil {
			duration = *m.DurationSeconds
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{m.CreatedAt.UTC().Format(time.RFC3339), speaker(m.Role), m.Content, duration}
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(transcriptSheet, "C", "C", 80); err != nil {
		return err
	}

	if _, err := f.NewSheet(evaluationSheet); err != nil {
		return err
	}
	if err := writeEvaluation(f, snap.Evaluation); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeEvaluation(f *excelize.File, ev *model.Evaluation) error {
	if ev == nil {
		return f.SetCellValue(evaluationSheet, "A1", "No evaluation yet")
	}
	summary := ""
	if ev.Summary != nil {
		summary = *ev.Summary
	}
	rows := [][]interface{}{
		{"Metric", "Score"},
		{"Pronunciation", ev.PronunciationScore},
		{"Prosody", ev.ProsodyScore},
		{"Grammar", ev.GrammarScore},
		{"Vocabulary", ev.VocabularyScore},
		{"Summary", summary},
	}
	for i := range rows {
		if err := f.SetSheetRow(evaluationSheet, fmt.Sprintf("A%d", i+1), &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func speaker(r model.MessageRole) string {
	if r == model.RoleUser {
		return "Learner"
	}
	return "Partner"
}

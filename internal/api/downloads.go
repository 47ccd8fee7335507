package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"speakup/internal/export"
	"speakup/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) downloadAudioArchive(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	files, err := h.svc.ListAudioFiles(c.Request.Context(), id, currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if len(files) == 0 {
		utils.Error(c, http.StatusNotFound, "No audio recordings for this session")
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ai-session-%s-audio.zip"`, id))
	c.Status(http.StatusOK)
	// headers are already sent; a failure can only truncate the stream
	if err := export.WriteAudioArchive(c.Writer, files, h.svc.ResolveAudio); err != nil {
		log.Printf("[Export] Audio archive for %s failed: %v", id, err)
	}
}

func (h *Handler) downloadTranscript(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	snap, err := h.svc.GetSnapshot(c.Request.Context(), id, currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTranscriptWorkbook(&buf, snap); err != nil {
		utils.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ai-session-%s-transcript.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

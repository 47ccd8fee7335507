package api

import (
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"speakup/internal/conversation"
	"speakup/internal/utils"
)

var allowedAudioExts = map[string]bool{
	"":      true,
	".webm": true,
	".ogg":  true,
	".opus": true,
	".m4a":  true,
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".flac": true,
}

type textMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) postTextMessage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req textMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.AddTextMessage(c.Request.Context(), id, currentUser(c), req.Text)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, turnResponse(res))
}

func (h *Handler) postAudioMessage(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		log.Printf("[Audio] FormFile error: %v", err)
		utils.Error(c, http.StatusBadRequest, "Audio file is required")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedAudioExts[ext] {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: webm, ogg, opus, m4a, mp3, wav, aac, flac")
		return
	}
	if file.Size > maxAudioBytes {
		utils.Error(c, http.StatusBadRequest, "file size exceeds 25MB limit")
		return
	}

	body, err := file.Open()
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer body.Close()

	res, err := h.svc.AddVoiceMessage(c.Request.Context(), id, currentUser(c), conversation.AudioUpload{
		Filename: file.Filename,
		Body:     body,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, turnResponse(res))
}

func turnResponse(res *conversation.TurnResult) gin.H {
	out := gin.H{
		"userMessage": res.UserMessage,
		"aiMessage":   res.AIMessage,
		"evaluation":  res.Evaluation,
	}
	if res.Transcription != nil {
		out["transcription"] = res.Transcription
	}
	return out
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"speakup/internal/conversation"
	"speakup/internal/model"
	"speakup/internal/realtime"
	"speakup/internal/utils"
)

// maxAudioBytes bounds a single voice turn upload.
const maxAudioBytes = 25 << 20

// Handler serves the practice-session API.
type Handler struct {
	svc      *conversation.Service
	hub      *realtime.Hub
	upgrader *websocket.Upgrader
	secret   []byte
}

func NewHandler(svc *conversation.Service, hub *realtime.Hub, jwtSecret string, origins []string) *Handler {
	return &Handler{
		svc:      svc,
		hub:      hub,
		upgrader: realtime.NewUpgrader(origins),
		secret:   []byte(jwtSecret),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	// Health check
	r.GET("/health", healthCheck)

	auth := h.requireAuth()
	r.GET("/ws/ai-chat", auth, h.serveWebsocket)

	v1 := r.Group("/api/v1/ai-chat", auth)
	{
		v1.GET("/scenarios", h.listScenarios)
		v1.POST("/scenarios", h.createScenario)
		v1.POST("/sessions", h.startSession)
		v1.GET("/sessions/:id/history", h.getHistory)
		v1.POST("/sessions/:id/messages", h.postTextMessage)
		v1.POST("/sessions/:id/audio", h.postAudioMessage)
		v1.POST("/sessions/:id/complete", h.completeSession)
		v1.GET("/sessions/:id/evaluation", h.getEvaluation)
		v1.GET("/sessions/:id/audio-archive", h.downloadAudioArchive)
		v1.GET("/sessions/:id/transcript.xlsx", h.downloadTranscript)
		v1.POST("/speech", h.synthesizeSpeech)
	}
}

// healthCheck returns server health status
func healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "speakup",
	})
}

func (h *Handler) listScenarios(c *gin.Context) {
	scenarios, err := h.svc.ListScenarios(c.Request.Context(), currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"scenarios": scenarios})
}

func (h *Handler) createScenario(c *gin.Context) {
	var in conversation.ScenarioInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.Error(c, http.StatusBadRequest, "title and prompt are required")
		return
	}
	sc, err := h.svc.CreateCustomScenario(c.Request.Context(), currentUser(c), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, gin.H{"scenario": sc})
}

type startRequest struct {
	ScenarioID           string `json:"scenarioId"`
	CustomTitle          string `json:"customTitle"`
	CustomPrompt         string `json:"customPrompt"`
	Mode                 string `json:"mode"`
	ScenarioContext      string `json:"scenarioContext"`
	ScenarioContextLabel string `json:"scenarioContextLabel"`
}

func (h *Handler) startSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	opts := conversation.StartOptions{
		CustomTitle:  req.CustomTitle,
		CustomPrompt: req.CustomPrompt,
		Mode:         model.ConversationMode(req.Mode),
		Focus:        req.ScenarioContext,
		FocusLabel:   req.ScenarioContextLabel,
	}
	if req.ScenarioID != "" {
		id, err := uuid.Parse(req.ScenarioID)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid scenarioId format")
			return
		}
		opts.ScenarioID = &id
	}

	res, err := h.svc.Start(c.Request.Context(), currentUser(c), opts)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, gin.H{
		"conversation":   res.Conversation,
		"openingMessage": res.OpeningMessage,
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	snap, err := h.svc.GetSnapshot(c.Request.Context(), id, currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"conversation": snap})
}

func (h *Handler) completeSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ev, err := h.svc.Complete(c.Request.Context(), id, currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"evaluation": ev})
}

func (h *Handler) getEvaluation(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ev, err := h.svc.GetEvaluation(c.Request.Context(), id, currentUser(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"evaluation": ev})
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (h *Handler) synthesizeSpeech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "Text is required for speech synthesis")
		return
	}
	speech, err := h.svc.Synthesize(c.Request.Context(), currentUser(c), req.Text, req.Voice)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{
		"audioBase64": speech.AudioBase64,
		"mimeType":    speech.MimeType,
		"voice":       speech.Voice,
	})
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid session id format")
		return uuid.Nil, false
	}
	return id, true
}

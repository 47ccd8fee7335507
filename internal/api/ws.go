package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"speakup/internal/utils"
)

// serveWebsocket joins the caller to the realtime room of one of their conversations.
func (h *Handler) serveWebsocket(c *gin.Context) {
	id, err := uuid.Parse(c.Query("conversationId"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "conversationId is required")
		return
	}
	if _, err := h.svc.GetSnapshot(c.Request.Context(), id, currentUser(c)); err != nil {
		utils.Fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Realtime] Upgrade failed for %s: %v", id, err)
		return
	}
	h.hub.Serve(conn, id)
}

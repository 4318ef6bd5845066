package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"reminder_service/internal/app"
	"reminder_service/internal/domain/notification"
	"reminder_service/internal/infra/auth"
)

type notifyResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId"`
}

func (s *Server) handleNotify(c *gin.Context) {
	trigger, ok := notification.ParseTrigger(c.Param("trigger"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trigger: " + c.Param("trigger")})
		return
	}

	var payload app.NotifyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	caller, _ := auth.FromContext(c)
	res, err := s.notifications.Dispatch(c.Request.Context(), caller.UserID, trigger, payload)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifyResponse{OK: true, MessageID: res.MessageID})
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	prefs, err := s.prefs.Load(c.Request.Context(), c.GetString(auth.ContextKeyUserID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	prefs, err := s.prefs.Save(c.Request.Context(), c.GetString(auth.ContextKeyUserID), body)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) handleStartSession(c *gin.Context) {
	s.sessions.StartSession(c.GetString(auth.ContextKeyUserID), c.GetString(auth.ContextKeyToken))
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (s *Server) handleEndSession(c *gin.Context) {
	ended := s.sessions.EndSession(c.GetString(auth.ContextKeyUserID))
	c.JSON(http.StatusOK, gin.H{"ok": true, "ended": ended})
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := notification.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(contextKeyRequestID),
		}).WithError(err).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

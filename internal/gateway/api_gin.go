package gateway

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tenantsync/internal/api"
	"tenantsync/internal/attachment"
)

const apiPrefix = "/api"

func (s *Server) apiAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if !s.authenticate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	group := engine.Group(apiPrefix, s.apiAuthMiddleware())
	group.GET("/health", s.ginAPIHealth)
	group.GET("/chats", s.ginAPIChats)
	group.GET("/chats/:id", s.ginAPIChatDetail)
	group.POST("/chats/:id/select", s.ginAPIChatSelect)
	group.POST("/chats/:id/messages", s.ginAPIChatSend)
	group.GET("/chats/:id/attachments", s.ginAPIChatAttachments)
	group.POST("/chats/:id/attachments", s.ginAPIChatUpload)
	group.POST("/chats/open", s.ginAPIChatOpen)
	group.GET("/attachments/:id", s.ginAPIAttachmentContent)
	group.POST("/refresh", s.ginAPIRefresh)
}

func (s *Server) ginAPIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"views":  s.Conns.Count(),
		"chats":  len(s.Engine.Chats()),
	})
}

func (s *Server) ginAPIChats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"chats":    s.Engine.Chats(),
		"selected": s.Engine.Selected(),
	})
}

func chatID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return id, true
}

func (s *Server) ginAPIChatDetail(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	chat, found := s.Engine.ChatByID(id)
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown chat"})
		return
	}
	meta := s.Engine.AttachmentList(id)
	assoc := attachment.Associate(chat.Messages, meta)
	c.JSON(http.StatusOK, gin.H{
		"chat":                  chat,
		"attachments":           meta,
		"messageAttachments":    assoc.ByMessage,
		"standaloneAttachments": assoc.Standalone,
		"draft":                 s.Engine.Draft(),
	})
}

func (s *Server) ginAPIChatSelect(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	if !s.Engine.Select(id) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": id})
}

type sendMessageBody struct {
	Text string `json:"text"`
}

func (s *Server) ginAPIChatSend(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	if err := s.Engine.Send(c.Request.Context(), id, body.Text); err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (s *Server) ginAPIChatAttachments(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attachments": s.Engine.AttachmentList(id),
		"polledAt":    s.Engine.LastAttachmentPoll(id),
	})
}

func (s *Server) ginAPIChatUpload(c *gin.Context) {
	id, ok := chatID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	var files []api.UploadFile
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		files = append(files, api.UploadFile{
			Name: fh.Filename,
			MIME: fh.Header.Get("Content-Type"),
			Data: data,
		})
	}
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no files"})
		return
	}
	uploaded, err := s.Engine.Upload(c.Request.Context(), id, files)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": uploaded})
}

type openChatBody struct {
	PropertyID int64 `json:"propertyId"`
	UnitID     int64 `json:"unitId"`
}

func (s *Server) ginAPIChatOpen(c *gin.Context) {
	var body openChatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if body.PropertyID == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "propertyId required"})
		return
	}
	result, err := s.Engine.OpenChat(c.Request.Context(), body.PropertyID, body.UnitID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ginAPIAttachmentContent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid attachment id"})
		return
	}
	path, err := s.Engine.ResolveAttachment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, attachment.ErrUnavailable) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "attachment unavailable"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

func (s *Server) ginAPIRefresh(c *gin.Context) {
	if !s.Engine.Refresh(c.Request.Context()) {
		// A recent or in-flight cycle already covers this request.
		c.JSON(http.StatusAccepted, gin.H{"refreshed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

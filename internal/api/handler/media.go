package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"supportdesk/backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	// multipart framing allowance on top of the file itself
	multipartOverhead = 64 << 10
	maxFieldBytes     = 1 << 10
)

type uploadForm struct {
	ConversationID string `form:"conversation_id" binding:"required"`
	AnonymousID    string `form:"anonymous_id" binding:"required"`
}

// upload is what readUpload managed to take from a multipart body. Fields found
// before a failure are kept so ownership can still be checked.
type upload struct {
	form     uploadForm
	filename string
	data     []byte
	hasFile  bool
	tooLarge bool
}

// readUpload streams the parts of the body. The file is read up to one byte past
// the size limit, which is enough for the policy to reject it.
func readUpload(c *gin.Context) (*upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxUploadBytes+multipartOverhead)
	mr, err := c.Request.MultipartReader()
	if err != nil {
		return &upload{}, err
	}

	up := &upload{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return up, nil
		}
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				up.tooLarge = true
			}
			return up, err
		}

		switch part.FormName() {
		case "conversation_id", "anonymous_id":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				return up, err
			}
			if part.FormName() == "conversation_id" {
				up.form.ConversationID = strings.TrimSpace(string(value))
			} else {
				up.form.AnonymousID = strings.TrimSpace(string(value))
			}
		case "file":
			data, err := io.ReadAll(io.LimitReader(part, config.MaxUploadBytes+1))
			if err != nil {
				return up, err
			}
			up.data, up.filename, up.hasFile = data, part.FileName(), true
			if int64(len(data)) > config.MaxUploadBytes {
				up.tooLarge = true
			}
		}
		_ = part.Close()
	}
}

// UploadMedia accepts one multipart file for a conversation. Ownership is checked
// before any complaint about the body, and the type check happens in the service
// on the sniffed bytes.
func (h *Handler) UploadMedia(c *gin.Context) {
	up, readErr := readUpload(c)

	if up.form.ConversationID != "" && up.form.AnonymousID != "" {
		if err := h.Service.Authorize(c.Request.Context(), up.form.ConversationID, up.form.AnonymousID); err != nil {
			h.respondError(c, "upload_media", err)
			return
		}
	}

	switch {
	case up.tooLarge:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: map[string]string{"file": "exceeds the size limit"}})
		return
	case readErr != nil:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: map[string]string{"body": "malformed multipart request"}})
		return
	}
	if err := binding.Validator.ValidateStruct(&up.form); err != nil {
		respondBindError(c, err)
		return
	}
	if !up.hasFile {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: map[string]string{"file": "is required"}})
		return
	}

	obj, err := h.Service.UploadMedia(c.Request.Context(), up.form.ConversationID, up.form.AnonymousID, up.filename, up.data)
	if err != nil {
		h.respondError(c, "upload_media", err)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

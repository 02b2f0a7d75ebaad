package handlers

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/services"
	"github.com/yoockh/erasreview/internal/utils"
)

type DocumentHandler struct {
	svc services.DocumentService
}

func NewDocumentHandler(svc services.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".txt":  "text/plain",
}

// contentType prefers the sniffed type and falls back to the extension for
// office formats, which sniff as zip or octet-stream.
func contentType(fileName string, head []byte) string {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	byExt := extensionTypes[strings.ToLower(filepath.Ext(fileName))]
	switch sniffed {
	case "application/pdf":
		return sniffed
	case "text/plain":
		if byExt == "text/plain" {
			return sniffed
		}
	case "application/zip", "application/octet-stream":
		if byExt != "" && byExt != "application/pdf" && byExt != "text/plain" {
			return byExt
		}
	}
	return sniffed
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	const op = "DocumentHandler.Upload"

	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > services.MaxDocumentBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large (max 10MB)", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	head = head[:n]

	doc, err := h.svc.Upload(c.Request.Context(), c.Param("id"), actor, services.UploadInput{
		FileName: fh.Filename,
		MimeType: contentType(fh.Filename, head),
		Size:     int(fh.Size),
		DocType:  models.DocumentType(strings.ToUpper(c.PostForm("doc_type"))),
		Content:  c.PostForm("content"),
		Body:     io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}

	docs, err := h.svc.List(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), c.Param("doc_id"), actor); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"social-agent/domain/model"
	"social-agent/infrastructure/configuration"
	"social-agent/infrastructure/logger"
	"social-agent/usecase"
)

// mimeByExt is the upload allow-list. Anything else is rejected before the
// file is stored.
var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

type IPublishHandler interface {
	Publish(ctx *gin.Context)
	History(ctx *gin.Context)
}

type publishHandler struct {
	publishUsecase usecase.IPublishUsecase
}

func NewPublishHandler(publishUsecase usecase.IPublishUsecase) IPublishHandler {
	return &publishHandler{publishUsecase: publishUsecase}
}

// Publish accepts a multipart upload and fans it out. The form carries the
// file under mediaFile, an optional caption, and either a single platform
// field or a comma-separated platforms field. The stored file is removed once
// every platform has produced an outcome, whether or not any succeeded.
func (h *publishHandler) Publish(c *gin.Context) {
	lg := logger.GetLogger()

	fileHeader, err := c.FormFile("mediaFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	platforms := requestedPlatforms(c)
	if len(platforms) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_platform"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	mimeType, ok := mimeByExt[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": model.ErrUnsupportedMediaType.Error()})
		return
	}
	maxSize := int64(configuration.C.Upload.MaxSizeMB) << 20
	if maxSize > 0 && fileHeader.Size > maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large"})
		return
	}

	fileName := uniqueName(ext)
	dst := filepath.Join(configuration.C.Upload.Dir, fileName)
	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		lg.WithField("error", err).Error("could not store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		return
	}
	defer func() {
		if err := os.Remove(dst); err != nil {
			lg.WithField("file", dst).WithField("error", err).Warn("could not remove upload")
		}
	}()

	kind := model.MediaKindImage
	if strings.HasPrefix(mimeType, "video/") {
		kind = model.MediaKindVideo
	}
	asset := &model.MediaAsset{
		Path:     dst,
		FileName: fileName,
		Kind:     kind,
		Size:     fileHeader.Size,
		MimeType: mimeType,
	}

	// A publish runs to completion once initiated; a closed browser tab must not
	// abort a half-finished upload or strand the remaining platforms.
	ctx := context.WithoutCancel(c.Request.Context())
	outcomes := h.publishUsecase.Publish(ctx, usecase.PublishRequest{
		Asset:     asset,
		Caption:   c.PostForm("caption"),
		Platforms: platforms,
	})

	if len(outcomes) == 1 {
		c.JSON(http.StatusOK, outcomes[0])
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

// History lists recent publish records, newest first. Returns an empty list
// when no database is configured.
func (h *publishHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.publishUsecase.History(c.Request.Context(), limit)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("could not list publish history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func requestedPlatforms(c *gin.Context) []string {
	raw := c.PostForm("platforms")
	if raw == "" {
		raw = c.PostForm("platform")
	}
	var platforms []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

func uniqueName(ext string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), hex.EncodeToString(b), ext)
}

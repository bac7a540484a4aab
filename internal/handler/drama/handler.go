package drama

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	dramamodel "playlet/internal/model/drama"
	"playlet/internal/pkg/ctxutil"
	httputil "playlet/internal/pkg/http"
	dramasvc "playlet/internal/service/drama"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler 资产版本接口处理器
type Handler struct {
	svc dramasvc.Service
}

// NewHandler 创建资产版本接口处理器
func NewHandler(svc dramasvc.Service) *Handler {
	return &Handler{svc: svc}
}

// SwitchCharacterImage 切换角色的激活图片
// @Summary      切换角色激活图片
// @Tags         资产版本
// @Param        character_id  path  string  true  "角色ID"
// @Param        image_id      path  string  true  "图片ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/characters/{character_id}/images/{image_id}/activate [post]
func (h *Handler) SwitchCharacterImage(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	if err := h.svc.SwitchCharacterImage(c.Request.Context(), userID, c.Param("character_id"), c.Param("image_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// SwitchSceneImage 切换场景指定类型的激活图片
func (h *Handler) SwitchSceneImage(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	imageType := dramamodel.SceneImageType(c.Query("image_type"))
	if imageType != dramamodel.SceneImageTypeMasterLayout && imageType != dramamodel.SceneImageTypeQuarterView {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: "image_type 必须是 master_layout 或 quarter_view"})
		return
	}
	if err := h.svc.SwitchSceneImage(c.Request.Context(), userID, c.Param("scene_id"), imageType, c.Param("image_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// SwitchVideoVersion 切换分镜的激活视频版本
func (h *Handler) SwitchVideoVersion(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	if err := h.svc.SwitchVideoVersion(c.Request.Context(), userID, c.Param("shot_id"), c.Param("asset_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// DeleteVideoVersion 删除分镜的一个视频版本
// 删除的是激活版本时自动把最新的剩余版本顶为激活
func (h *Handler) DeleteVideoVersion(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	if err := h.svc.DeleteVideoVersion(c.Request.Context(), userID, c.Param("shot_id"), c.Param("asset_id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// VideoAssetInfo 视频资产 DTO
type VideoAssetInfo struct {
	ID           string `json:"id"`
	ShotID       string `json:"shot_id"`
	Version      int    `json:"version"`
	IsActive     bool   `json:"is_active"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// ListVideoVersions 查询分镜的全部视频版本
func (h *Handler) ListVideoVersions(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	assets, err := h.svc.ListVideoVersions(c.Request.Context(), userID, c.Param("shot_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	infos := make([]VideoAssetInfo, len(assets))
	for i, a := range assets {
		infos[i] = VideoAssetInfo{
			ID:           a.ID,
			ShotID:       a.ShotID,
			Version:      a.Version,
			IsActive:     a.IsActive,
			VideoURL:     a.VideoURL,
			ThumbnailURL: a.ThumbnailURL,
			DurationMS:   a.DurationMS,
			Status:       string(a.Status),
			CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"versions": infos,
			"count":    len(infos),
		},
	})
}

// ListCharacterImages 查询角色的全部图片版本
func (h *Handler) ListCharacterImages(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	images, err := h.svc.ListCharacterImages(c.Request.Context(), userID, c.Param("character_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"images": images,
			"count":  len(images),
		},
	})
}

// ListSceneImages 查询场景的全部图片版本
func (h *Handler) ListSceneImages(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	images, err := h.svc.ListSceneImages(c.Request.Context(), userID, c.Param("scene_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"images": images,
			"count":  len(images),
		},
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, dramasvc.ErrUnauthorized) {
		c.JSON(http.StatusForbidden, ErrorResponse{Code: httputil.CodeForbidden, Message: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Code: httputil.CodeInternal, Message: err.Error()})
}

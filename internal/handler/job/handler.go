package job

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	jobmodel "playlet/internal/model/job"
	"playlet/internal/pkg/ctxutil"
	httputil "playlet/internal/pkg/http"
	jobsvc "playlet/internal/service/job"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler 任务接口处理器
type Handler struct {
	svc jobsvc.Service
}

// NewHandler 创建任务接口处理器
func NewHandler(svc jobsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// EnqueueRequest 创建任务请求
type EnqueueRequest struct {
	Type  string          `json:"type" binding:"required"` // 任务类型
	Input json.RawMessage `json:"input" binding:"required"` // 类型对应的输入参数
}

// Enqueue 创建任务
// @Summary      创建生成任务
// @Description  创建一个异步生成任务并入队，返回任务ID供轮询
// @Tags         任务
// @Accept       json
// @Produce      json
// @Param        request  body      EnqueueRequest  true  "任务类型和输入参数"
// @Success      200      {object}  map[string]interface{}  "成功响应"
// @Failure      400      {object}  ErrorResponse           "请求参数错误"
// @Router       /api/v1/jobs [post]
func (h *Handler) Enqueue(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: "请求参数错误", Detail: err.Error()})
		return
	}

	var input any
	if err := json.Unmarshal(req.Input, &input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: "input 不是合法的 JSON"})
		return
	}

	j, err := h.svc.Enqueue(c.Request.Context(), userID, jobmodel.Type(req.Type), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"job_id": j.ID,
			"type":   j.Type,
			"status": j.Status,
		},
	})
}

// Get 查询任务状态
// @Summary      查询任务
// @Tags         任务
// @Produce      json
// @Param        job_id  path      string  true  "任务ID"
// @Success      200     {object}  map[string]interface{}  "成功响应"
// @Router       /api/v1/jobs/{job_id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: "job_id is required"})
		return
	}

	j, err := h.svc.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    toJobInfo(j),
	})
}

// List 查询当前用户的任务列表
func (h *Handler) List(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	jobType := jobmodel.Type(c.Query("type"))
	status := jobmodel.Status(c.Query("status"))

	jobs, err := h.svc.ListByUser(c.Request.Context(), userID, jobType, status, 50)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"jobs":  toJobInfoList(jobs),
			"count": len(jobs),
		},
	})
}

// ListByProject 查询项目的任务列表
func (h *Handler) ListByProject(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	projectID := c.Param("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: "project_id is required"})
		return
	}
	jobType := jobmodel.Type(c.Query("type"))

	jobs, err := h.svc.ListByProject(c.Request.Context(), userID, projectID, jobType, 50)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"jobs":  toJobInfoList(jobs),
			"count": len(jobs),
		},
	})
}

// Cancel 取消任务（仅未开始执行的任务）
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	jobID := c.Param("job_id")

	if err := h.svc.Cancel(c.Request.Context(), userID, jobID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// MarkImported 用户确认导入提取结果后打标
func (h *Handler) MarkImported(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	jobID := c.Param("job_id")

	if err := h.svc.MarkImported(c.Request.Context(), userID, jobID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// writeError 统一把服务层错误映射为响应码
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobsvc.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Code: httputil.CodeForbidden, Message: err.Error()})
	case errors.Is(err, jobsvc.ErrInvalidInput), errors.Is(err, jobsvc.ErrUnknownType):
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidParam, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: httputil.CodeInternal, Message: err.Error()})
	}
}

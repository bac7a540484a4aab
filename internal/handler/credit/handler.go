package credit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	creditmodel "playlet/internal/model/credit"
	"playlet/internal/pkg/ctxutil"
	httputil "playlet/internal/pkg/http"
	creditsvc "playlet/internal/service/credit"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler 积分接口处理器
type Handler struct {
	svc creditsvc.Service
}

// NewHandler 创建积分接口处理器
func NewHandler(svc creditsvc.Service) *Handler {
	return &Handler{svc: svc}
}

// Balance 查询余额
// @Summary      查询积分余额
// @Tags         积分
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/credits/balance [get]
func (h *Handler) Balance(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	balance, err := h.svc.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: httputil.CodeInternal, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    gin.H{"balance": balance},
	})
}

// TransactionInfo 流水 DTO
type TransactionInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	JobID       string `json:"job_id,omitempty"`
	AssetID     string `json:"asset_id,omitempty"`
	RefundOf    string `json:"refund_of,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// History 查询流水
func (h *Handler) History(c *gin.Context) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "未授权"})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	txs, err := h.svc.History(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: httputil.CodeInternal, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"transactions": toTransactionInfoList(txs),
			"count":        len(txs),
		},
	})
}

func toTransactionInfoList(txs []*creditmodel.Transaction) []TransactionInfo {
	result := make([]TransactionInfo, len(txs))
	for i, tx := range txs {
		result[i] = TransactionInfo{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Amount:      tx.Amount,
			Description: tx.Description,
			JobID:       tx.JobID,
			AssetID:     tx.AssetID,
			RefundOf:    tx.RefundOf,
			CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		}
	}
	return result
}

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fundhub/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrInvalidTransfer, http.StatusBadRequest},
	{domain.ErrInvalidRefundAmount, http.StatusBadRequest},
	{domain.ErrInvalidConfig, http.StatusBadRequest},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
	{domain.ErrNotOrderOwner, http.StatusForbidden},
	{domain.ErrNotProductDesigner, http.StatusForbidden},
	{domain.ErrOrderNotFound, http.StatusNotFound},
	{domain.ErrTransactionNotFound, http.StatusNotFound},
	{domain.ErrConfigNotFound, http.StatusNotFound},
	{domain.ErrNotificationNotFound, http.StatusNotFound},
	{domain.ErrAlreadyCharged, http.StatusConflict},
	{domain.ErrAlreadyRefunded, http.StatusConflict},
	{domain.ErrAlreadyAccrued, http.StatusConflict},
	{domain.ErrDuplicateReference, http.StatusConflict},
	{domain.ErrConcurrentUpdate, http.StatusConflict},
	{domain.ErrCancellationWindowClosed, http.StatusUnprocessableEntity},
	{domain.ErrOrderNotRefunded, http.StatusUnprocessableEntity},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the mapped status. Internal errors are logged and
// hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parsePagination(c *gin.Context, sizeParam string) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery(sizeParam, "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

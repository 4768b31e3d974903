package httpserver

import (
	"errors"
	"net/http"

	"cartsync/internal/ctapi"
	"cartsync/internal/domain"
	cartsvc "cartsync/internal/service/cart"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const codeConcurrentModification = "ConcurrentModification"

type cartHandlers struct {
	svc    cartService
	logger *logrus.Entry
}

func (h cartHandlers) get(c *gin.Context) {
	project, ok := projectFrom(c)
	if !ok {
		h.fail(c, errors.New("project missing from context"))
		return
	}
	cart, err := h.svc.GetForSession(c.Request.Context(), project, c.Param("sessionID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ctapi.FromCart(*cart))
}

func (h cartHandlers) update(c *gin.Context) {
	project, ok := projectFrom(c)
	if !ok {
		h.fail(c, errors.New("project missing from context"))
		return
	}
	var req ctapi.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.NewValidationError("body", err.Error()))
		return
	}
	cart, err := h.svc.UpdateForSession(c.Request.Context(), project, c.Param("sessionID"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ctapi.FromCart(*cart))
}

// fail maps service errors onto status codes and the error envelope.
func (h cartHandlers) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, ctapi.CodeGeneral
	message := err.Error()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, ctapi.CodeResourceNotFound
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, ctapi.CodeInvalidInput
	case errors.Is(err, cartsvc.ErrVersionConflict):
		status, code = http.StatusConflict, codeConcurrentModification
	default:
		message = "internal error"
	}
	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"method":  c.Request.Method,
		"path":    c.FullPath(),
		"session": c.Param("sessionID"),
		"status":  status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("cart request failed")
	} else {
		entry.Debug("cart request rejected")
	}
	c.JSON(status, ctapi.NewError(status, code, message))
}

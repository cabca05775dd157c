package dashboard

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octvision/octvision/internal/platform/apierror"
	"github.com/octvision/octvision/internal/platform/auth"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/dashboard/export", h.ExportDashboard)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.Get(c.Request().Context(), sess)
	if err != nil {
		return apierror.From(err, "dashboard not found")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ExportDashboard(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Export(c.Request().Context(), sess)
	if err != nil {
		return apierror.From(err, "dashboard not found")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", ExportFileName))
	return c.Blob(http.StatusOK, mimeXLSX, data)
}

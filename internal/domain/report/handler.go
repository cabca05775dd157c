package report

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octvision/octvision/internal/platform/apierror"
	"github.com/octvision/octvision/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/predictions/:id/reports/clinician", h.GenerateClinician)
	api.POST("/predictions/:id/reports/patient", h.GeneratePatient)
	api.GET("/predictions/:id/report", h.GetReport)
	api.GET("/predictions/:id/report/download", h.DownloadReport)
	api.GET("/reports/latest", h.GetLatest)
}

func predictionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid prediction id")
	}
	return id, nil
}

func (h *Handler) GenerateClinician(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := predictionID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.GenerateClinician(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "prediction not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GeneratePatient(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := predictionID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.GeneratePatient(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "prediction not found")
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetReport(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := predictionID(c)
	if err != nil {
		return err
	}
	hr, err := h.svc.Get(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "report not found")
	}
	return c.JSON(http.StatusOK, hr)
}

func (h *Handler) DownloadReport(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := predictionID(c)
	if err != nil {
		return err
	}
	text, err := h.svc.Download(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "report not found")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", DownloadFileName))
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, []byte(text))
}

func (h *Handler) GetLatest(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	hr, err := h.svc.Latest(c.Request().Context(), sess)
	if err != nil {
		return apierror.From(err, "no reports yet")
	}
	return c.JSON(http.StatusOK, hr)
}

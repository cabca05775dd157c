package diagnosis

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octvision/octvision/internal/platform/apierror"
	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/diagnoses", h.CreateDiagnosis)

	api.GET("/scans", h.ListScans)
	api.GET("/scans/:id", h.GetScan)
	api.GET("/scans/:id/image", h.GetScanImage)
	api.DELETE("/scans/:id", h.DeleteScan)

	api.GET("/predictions", h.ListPredictions)
	api.GET("/predictions/:id", h.GetPrediction)
}

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	// One byte past the limit is enough to report the upload as too large.
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
	}

	res, err := h.svc.Diagnose(c.Request().Context(), sess, Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return apierror.From(err, "not found")
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListScans(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListScans(c.Request().Context(), sess, pg.Limit, pg.Offset)
	if err != nil {
		return apierror.From(err, "scans not found")
	}
	if items == nil {
		items = []*ScanImage{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetScan(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	scan, err := h.svc.GetScan(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "scan not found")
	}
	return c.JSON(http.StatusOK, scan)
}

func (h *Handler) GetScanImage(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rc, scan, err := h.svc.OpenScanImage(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "scan not found")
	}
	defer rc.Close()
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Stream(http.StatusOK, scan.ContentType, rc)
}

func (h *Handler) DeleteScan(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteScan(c.Request().Context(), sess, id); err != nil {
		return apierror.From(err, "scan not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPredictions(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPredictions(c.Request().Context(), sess, pg.Limit, pg.Offset)
	if err != nil {
		return apierror.From(err, "predictions not found")
	}
	if items == nil {
		items = []*PredictionWithScan{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetPrediction(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrediction(c.Request().Context(), sess, id)
	if err != nil {
		return apierror.From(err, "prediction not found")
	}
	return c.JSON(http.StatusOK, p)
}

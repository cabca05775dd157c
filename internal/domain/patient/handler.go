package patient

import (
	"net/http"

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
	api.GET("/medical-history", h.GetHistory)
	api.PUT("/medical-history", h.SaveHistory)
	api.GET("/medical-history/options", h.GetOptions)
	api.GET("/profile", h.GetProfile)
}

func (h *Handler) GetHistory(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.GetHistory(c.Request().Context(), sess)
	if err != nil {
		return apierror.From(err, "medical history not found")
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) SaveHistory(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	var in HistoryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hist, err := h.svc.SaveHistory(c.Request().Context(), sess, in)
	if err != nil {
		return apierror.From(err, "medical history not found")
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) GetOptions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"options": HistoryOptions,
		"other":   OtherChoice,
	})
}

func (h *Handler) GetProfile(c echo.Context) error {
	sess, err := auth.SessionFrom(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfile(c.Request().Context(), sess)
	if err != nil {
		return apierror.From(err, "profile not found")
	}
	return c.JSON(http.StatusOK, p)
}

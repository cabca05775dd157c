package content

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const headerContentLanguage = "Content-Language"

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes mounts the public pages. They sit outside the
// authenticated API group.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.GetLanding)
	e.GET("/education", h.GetEducation)
}

func (h *Handler) GetLanding(c echo.Context) error {
	lang, err := langParam(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(headerContentLanguage, string(lang))
	return c.JSON(http.StatusOK, LandingFor(lang))
}

func (h *Handler) GetEducation(c echo.Context) error {
	lang, err := langParam(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(headerContentLanguage, string(lang))
	return c.JSON(http.StatusOK, EducationFor(lang))
}

func langParam(c echo.Context) (Lang, error) {
	lang, err := ParseLang(c.QueryParam("lang"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return lang, nil
}

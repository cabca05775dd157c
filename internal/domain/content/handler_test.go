package content

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_Landing(t *testing.T) {
	e := echo.New()
	NewHandler().RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/?lang=ar", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(headerContentLanguage); got != "ar" {
		t.Errorf("Content-Language = %q", got)
	}
	var l Landing
	if err := json.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatal(err)
	}
	if l.Lang != LangArabic || l.Dir != "rtl" || l.AppName == "" {
		t.Errorf("unexpected landing %+v", l)
	}
}

func TestHandler_EducationDefaultsToEnglish(t *testing.T) {
	e := echo.New()
	NewHandler().RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/education", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ed Education
	if err := json.Unmarshal(rec.Body.Bytes(), &ed); err != nil {
		t.Fatal(err)
	}
	if ed.Lang != LangEnglish || ed.Title != "Eye Health Education Center" {
		t.Errorf("unexpected education page %+v", ed)
	}
}

func TestHandler_UnsupportedLang(t *testing.T) {
	e := echo.New()
	h := NewHandler()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/education?lang=de", nil), httptest.NewRecorder())
	err := h.GetEducation(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

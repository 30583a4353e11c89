package forms

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ehr/anesthesia/internal/platform/middleware"
	"github.com/ehr/anesthesia/pkg/pagination"
)

// exportMaxAge is the private cache lifetime of exports and chart images.
const exportMaxAge = 60

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	etag := middleware.ETag(exportMaxAge)

	api.GET("/forms/:kind", h.ListForms)
	api.POST("/forms/:kind/import", h.ImportForm)
	api.GET("/forms/intraop/:patient/chart.png", h.ChartPNG, etag)
	api.GET("/forms/:kind/:patient", h.GetForm)
	api.PUT("/forms/:kind/:patient", h.SaveForm)
	api.PATCH("/forms/:kind/:patient", h.PatchForm)
	api.DELETE("/forms/:kind/:patient", h.DeleteForm)
	api.GET("/forms/:kind/:patient/export", h.ExportForm, etag)
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "form not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func kindParam(c echo.Context) (Kind, error) {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return kind, nil
}

// patientParam returns the unescaped patient name path segment.
func patientParam(c echo.Context) (string, error) {
	p, err := url.PathUnescape(c.Param("patient"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid patient name")
	}
	return p, nil
}

func (h *Handler) ListForms(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), kind, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Record{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetForm(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), kind, patient)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) SaveForm(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	rec, err := h.svc.Save(c.Request().Context(), kind, patient, body)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) PatchForm(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.ApplyPatch(c.Request().Context(), kind, patient, p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteForm(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), kind, patient); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExportForm(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Export(c.Request().Context(), kind, patient)
	if err != nil {
		return httpError(err)
	}
	filename := fmt.Sprintf("%s-%s.json", kind, url.PathEscape(patient))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, data)
}

func (h *Handler) ImportForm(c echo.Context) error {
	kind, err := kindParam(c)
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

	rec, err := h.svc.Import(c.Request().Context(), kind, f)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ChartPNG(c echo.Context) error {
	patient, err := patientParam(c)
	if err != nil {
		return err
	}
	data, err := h.svc.RenderChart(c.Request().Context(), patient)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/png", data)
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/ports"
	"github.com/fishsupply/supply-system/internal/infrastructure/export"
	"github.com/fishsupply/supply-system/internal/pkg/metrics"
)

// ResourceHandler serves the CRUD endpoints of one entity collection.
type ResourceHandler struct {
	service ports.ResourceService
	entity  string
	title   string
}

func NewResourceHandler(service ports.ResourceService) *ResourceHandler {
	s := service.Schema()
	return &ResourceHandler{service: service, entity: s.Entity, title: s.Title()}
}

type messageResponse struct {
	Message string `json:"message"`
}

// List handles GET /api/:resource.
//
// @Summary      List documents
// @Tags         resources
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Success      200       {array}   map[string]interface{}
// @Failure      500       {object}  ErrorResponse
// @Router       /api/{resource} [get]
func (h *ResourceHandler) List(c echo.Context) error {
	defer h.observe("list", time.Now())

	docs, err := h.service.List(requestContext(c))
	if err != nil {
		return h.fail("list", err)
	}
	h.count("list", nil)
	return c.JSON(http.StatusOK, docs)
}

// Get handles GET /api/:resource/:id.
//
// @Summary      Get a document by id
// @Tags         resources
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Param        id        path      string  true  "Document id"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /api/{resource}/{id} [get]
func (h *ResourceHandler) Get(c echo.Context) error {
	defer h.observe("get", time.Now())

	doc, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		return h.fail("get", err)
	}
	h.count("get", nil)
	return c.JSON(http.StatusOK, doc)
}

// Create handles POST /api/:resource.
//
// @Summary      Create a document
// @Tags         resources
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Param        body      body      map[string]interface{}  true  "Field values"
// @Success      201       {object}  map[string]interface{}
// @Failure      400       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Router       /api/{resource} [post]
func (h *ResourceHandler) Create(c echo.Context) error {
	defer h.observe("create", time.Now())

	body, err := bindFields(c)
	if err != nil {
		return h.fail("create", err)
	}

	doc, err := h.service.Create(requestContext(c), body)
	if err != nil {
		return h.fail("create", err)
	}
	h.count("create", nil)
	return c.JSON(http.StatusCreated, doc)
}

// Update handles PUT /api/:resource/:id. Omitted fields keep their values.
//
// @Summary      Update a document
// @Tags         resources
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string                  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Param        id        path      string                  true  "Document id"
// @Param        body      body      map[string]interface{}  true  "Changed field values"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /api/{resource}/{id} [put]
func (h *ResourceHandler) Update(c echo.Context) error {
	defer h.observe("update", time.Now())

	body, err := bindFields(c)
	if err != nil {
		return h.fail("update", err)
	}

	doc, err := h.service.Update(requestContext(c), c.Param("id"), body)
	if err != nil {
		return h.fail("update", err)
	}
	h.count("update", nil)
	return c.JSON(http.StatusOK, doc)
}

// Delete handles DELETE /api/:resource/:id.
//
// @Summary      Delete a document
// @Tags         resources
// @Produce      json
// @Security     BearerAuth
// @Param        resource  path      string  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Param        id        path      string  true  "Document id"
// @Success      200       {object}  messageResponse
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /api/{resource}/{id} [delete]
func (h *ResourceHandler) Delete(c echo.Context) error {
	defer h.observe("delete", time.Now())

	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		return h.fail("delete", err)
	}
	h.count("delete", nil)
	return c.JSON(http.StatusOK, messageResponse{Message: h.title + " deleted successfully"})
}

// Export handles GET /api/:resource/export.
//
// @Summary      Export the collection as a spreadsheet
// @Tags         resources
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        resource  path      string  true  "Collection"  Enums(companies, suppliers, stocks, vehicles, deliveries, feedbacks)
// @Success      200       {file}    file
// @Failure      500       {object}  ErrorResponse
// @Router       /api/{resource}/export [get]
func (h *ResourceHandler) Export(c echo.Context) error {
	defer h.observe("export", time.Now())

	docs, err := h.service.List(requestContext(c))
	if err != nil {
		return h.fail("export", err)
	}

	data, err := export.Workbook(h.service.Schema(), docs)
	if err != nil {
		return h.fail("export", err)
	}

	filename := fmt.Sprintf("%s_%s.xlsx", h.service.Schema().Collection, time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	h.count("export", nil)
	return c.Blob(http.StatusOK, export.ContentType, data)
}

// bindFields decodes the request body into a raw field map. Path parameters
// are deliberately not merged into it.
func bindFields(c echo.Context) (map[string]any, error) {
	var body map[string]any
	if err := new(echo.DefaultBinder).BindBody(c, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func (h *ResourceHandler) fail(op string, err error) error {
	h.count(op, err)
	return err
}

func (h *ResourceHandler) count(op string, err error) {
	metrics.ResourceOperationsTotal.WithLabelValues(h.entity, op, outcome(err)).Inc()
}

func (h *ResourceHandler) observe(op string, start time.Time) {
	metrics.ResourceOperationDuration.WithLabelValues(h.entity, op).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation), errors.As(err, &he):
		return "validation"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidID):
		return "invalid_id"
	default:
		return "error"
	}
}

// ErrorResponse is the error envelope rendered by the API error handler.
// Fields is set for validation and conflict errors.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

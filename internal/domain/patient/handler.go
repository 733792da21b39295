package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	msgCreated = "Patient created successfully"
	msgUpdated = "Patient updated successfully"
	msgDeleted = "Patient deleted successfully"
)

// MessageResponse is the body of a successful write.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/views", h.ListPatients)
	g.GET("/patient/:id", h.GetPatient)
	g.GET("/sort", h.SortPatients)
	g.POST("/create", h.CreatePatient)
	g.PUT("/update/:id", h.UpdatePatient)
	g.DELETE("/delete/:id", h.DeletePatient)
}

func (h *Handler) ListPatients(c echo.Context) error {
	coll, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, coll)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SortPatients(c echo.Context) error {
	// order defaults to asc only when the parameter is absent; ?order= is invalid
	order := OrderAsc
	if c.QueryParams().Has("order") {
		order = c.QueryParam("order")
	}
	items, err := h.svc.SortPatients(c.Request().Context(), c.QueryParam("sort_by"), order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var f Fields
	if err := decodeBody(c, &f); err != nil {
		return err
	}
	if _, err := h.svc.CreatePatient(c.Request().Context(), f); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/patient/"+f.ID)
	return c.JSON(http.StatusCreated, MessageResponse{Message: msgCreated})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var patch Patch
	if err := decodeBody(c, &patch); err != nil {
		return err
	}
	if _, err := h.svc.UpdatePatient(c.Request().Context(), c.Param("id"), patch); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgUpdated})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.DeletePatient(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msgDeleted})
}

// decodeBody binds a JSON request body into v. Problems with the body
// itself are reported as a validation failure of the "body" field, or of
// the offending field for a JSON type mismatch. Transport errors such as
// an oversized body or a missing content type pass through unchanged.
func decodeBody(c echo.Context, v interface{}) error {
	if c.Request().ContentLength == 0 {
		return bodyRequired()
	}
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return &ValidationError{Fields: []FieldError{{Field: "body", Constraint: "json", Message: err.Error()}}}
	}
	if he.Internal == nil {
		return he
	}

	cause := he.Internal
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(cause, io.EOF):
		return bodyRequired()
	case errors.As(cause, &typeErr) && typeErr.Field != "":
		return &ValidationError{Fields: []FieldError{{
			Field:      typeErr.Field,
			Constraint: "type",
			Message:    fmt.Sprintf("must be of type %s", typeErr.Type),
		}}}
	}
	return &ValidationError{Fields: []FieldError{{Field: "body", Constraint: "json", Message: cause.Error()}}}
}

func bodyRequired() error {
	return &ValidationError{Fields: []FieldError{{Field: "body", Constraint: "required", Message: "is required"}}}
}

// StatusFor maps an error returned by a handler to its HTTP status and
// response body.
func StatusFor(err error) (int, ErrorResponse) {
	var (
		verr     *ValidationError
		notFound *NotFoundError
		conflict *ConflictError
		badArg   *InvalidArgumentError
		storage  *StorageError
		he       *echo.HTTPError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorResponse{Detail: "Validation failed", Errors: verr.Fields}
	case errors.As(err, &notFound):
		return http.StatusBadRequest, ErrorResponse{Detail: notFound.Error()}
	case errors.As(err, &conflict):
		return http.StatusBadRequest, ErrorResponse{Detail: conflict.Error()}
	case errors.As(err, &badArg):
		return http.StatusBadRequest, ErrorResponse{Detail: badArg.Error()}
	case errors.As(err, &storage):
		return http.StatusInternalServerError, ErrorResponse{Detail: storage.Error()}
	case errors.As(err, &he):
		return he.Code, ErrorResponse{Detail: fmt.Sprint(he.Message)}
	}
	return http.StatusInternalServerError, ErrorResponse{Detail: http.StatusText(http.StatusInternalServerError)}
}

// ErrorHandler renders handler errors as ErrorResponse bodies. Server-side
// failures are logged with the request id.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := StatusFor(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
)

// ContextActorID holds the authenticated actor's uuid.UUID.
const ContextActorID = "actor_id"

type Response struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewAppErrorResponse exposes the code-level message and any field errors,
// never the wrapped cause.
func NewAppErrorResponse(err error) *Response {
	appErr, ok := apperrors.As(err)
	if !ok {
		return NewErrorResponse("internal server error")
	}
	resp := NewErrorResponse(appErr.Message)
	resp.Errors = appErr.Fields
	return resp
}

// ActorID returns the authenticated actor, if any.
func ActorID(c *gin.Context) *uuid.UUID {
	v, ok := c.Get(ContextActorID)
	if !ok {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

// ParseID reads a uuid path parameter.
func ParseID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation(apperrors.FieldError{Field: name, Message: "must be a valid UUID"})
	}
	return id, nil
}

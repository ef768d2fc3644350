package utils

import (
	"errors"
	"strconv"
	"strings"

	"clinic-management-server/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// ValidationError converts validator errors into a VALIDATION_ERROR with one
// detail per field.
func ValidationError(err error) *apperr.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperr.Validation(apperr.CodeValidation, "invalid request payload: "+err.Error())
	}
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		msg := e.Tag()
		if e.Param() != "" {
			msg += "=" + e.Param()
		}
		fields[lowerFirst(e.Field())] = msg
	}
	return apperr.Validation(apperr.CodeValidation, "validation failed").WithDetail("fields", fields)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it records the error and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, ValidationError(err))
		return false
	}
	if err := Validate(obj); err != nil {
		Fail(c, ValidationError(err))
		return false
	}
	return true
}

// ParamUUID parses the named path parameter. On failure it records a
// validation error and returns false.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Fail(c, apperr.Validation(apperr.CodeValidation, "invalid "+name).WithDetail("param", name))
		return uuid.Nil, false
	}
	return id, true
}

// Pagination reads page and pageSize query parameters with defaults of 1 and
// 20, capping pageSize at 100.
func Pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

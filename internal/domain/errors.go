package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrUnauthenticated пользователь не аутентифицирован
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden действие не разрешено текущим набором возможностей
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrMisconfigured отсутствует обязательная настройка (цена плана, секрет)
	ErrMisconfigured = errors.New("service misconfigured")

	// ErrExternalService внешний сервис вернул ошибку
	ErrExternalService = errors.New("external service error")
)

// AuthenticationError ошибка аутентификации (отсутствующий или невалидный токен)
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrUnauthenticated }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *AuthenticationError) HTTPStatus() int { return http.StatusUnauthorized }

// ValidationError ошибка валидации входных данных
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }

// AuthorizationError предикат разрешений вернул false
type AuthorizationError struct {
	Predicate string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("action not allowed by current plan (%s)", e.Predicate)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *AuthorizationError) HTTPStatus() int { return http.StatusForbidden }

// NotFoundError запись с указанным идентификатором не найдена
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }

// ConfigurationError отсутствует обязательная настройка. Детали логируются
// на сервере, наружу уходит только общее сообщение.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrMisconfigured }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *ConfigurationError) HTTPStatus() int { return http.StatusInternalServerError }

// ExternalServiceError ошибка вызова внешнего сервиса (Stripe и т.п.)
type ExternalServiceError struct {
	Service     string
	Message     string
	OriginalErr error
}

func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error: %s: %v", e.Service, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error: %s", e.Service, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error { return e.OriginalErr }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// HTTPStatus возвращает HTTP статус для ошибки
func (e *ExternalServiceError) HTTPStatus() int { return http.StatusInternalServerError }

// HTTPStatuser ошибки, знающие свой HTTP статус
type HTTPStatuser interface {
	HTTPStatus() int
}

// StatusOf возвращает HTTP статус для произвольной ошибки
func StatusOf(err error) int {
	var st HTTPStatuser
	if errors.As(err, &st) {
		return st.HTTPStatus()
	}
	return http.StatusInternalServerError
}

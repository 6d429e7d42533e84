package errmsg

import (
	"errors"
	"net/http"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)
)

var (
	ErrUserAlreadyExists = NewHTTPError(
		http.StatusConflict,
		errors.New("user already exists"),
	)

	ErrUserNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("user not found"),
	)

	ErrUserCredentialsInvalid = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("user credentials invalid"),
	)

	ErrAdminOnly = NewHTTPError(
		http.StatusForbidden,
		errors.New("admin access required"),
	)

	ErrBalanceNotEnough = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("balance not enough"),
	)
)

var (
	ErrProductNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("product not found"),
	)

	ErrProductOutOfStock = NewHTTPError(
		http.StatusConflict,
		errors.New("product is out of stock"),
	)

	ErrOrderNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("order not found"),
	)
)

var (
	ErrVoucherInvalid = NewHTTPError(
		http.StatusNotFound,
		errors.New("voucher code invalid"),
	)

	ErrVoucherAlreadyUsed = NewHTTPError(
		http.StatusConflict,
		errors.New("voucher already used"),
	)

	ErrAnnouncementNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("announcement not found"),
	)
)

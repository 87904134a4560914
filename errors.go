package main

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("API key or secret key not configured")
	ErrTokenUnavailable   = errors.New("unable to obtain access token")
	ErrInvalidImage       = errors.New("invalid image")
	ErrNoExcelData        = errors.New("no table data in OCR result")
	ErrResultPending      = errors.New("OCR result still processing")
	ErrNoBarcodeColumn    = errors.New("no barcode column found")
	ErrNoProducts         = errors.New("no valid products extracted")
	ErrNoOrders           = errors.New("no purchase orders to merge")
	ErrNoInputFile        = errors.New("no input file found")
)

// APIError is an error reported in the body of an OCR API response.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OCR API error %d: %s", e.Code, e.Msg)
}

// Authorization failures mean the cached token is no good.
func (e *APIError) IsAuth() bool {
	return e.Code == 110 || e.Code == 111
}

func isAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

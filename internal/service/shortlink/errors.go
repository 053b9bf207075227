package shortlink

import "github.com/ignite/mailevents/internal/pkg/apperr"

// Sentinel errors for the short-link service layer.
var (
	ErrNotFound         = apperr.New(apperr.KindNotFound, "no short link found with the provided short code")
	ErrCodeTaken        = apperr.New(apperr.KindConflict, "the custom short code is already in use")
	ErrTargetRequired   = apperr.New(apperr.KindValidation, "target URL is required")
	ErrInvalidTarget    = apperr.New(apperr.KindValidation, "target URL must be an absolute http(s) URL")
	ErrInvalidShortCode = apperr.New(apperr.KindValidation, "custom short code must be 3-20 alphanumeric characters")
	ErrCodesExhausted   = apperr.New(apperr.KindInternal, "unable to generate a unique short code, try again or provide a custom one")
	ErrDBUnavailable    = apperr.New(apperr.KindStorageUnavailable, "database temporarily unavailable, try again later")
)

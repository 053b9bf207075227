package aggregate

import "github.com/ignite/mailevents/internal/pkg/apperr"

// Sentinel errors for the aggregate service layer.
var (
	ErrGenerationNotFound = apperr.New(apperr.KindNotFound, "report generation not found")
	ErrDomainNotFound     = apperr.New(apperr.KindNotFound, "domain not found in report generation")
	ErrInvalidGeneration  = apperr.New(apperr.KindValidation, "report generation must be an integer >= 2")
	ErrDomainRequired     = apperr.New(apperr.KindValidation, "domain is required")
)

// Package issuer wraps the credential issuer's per-principal claims
// registry. The issuer signs and delivers credentials itself; this
// adapter only sets, clears, and reads the claims embedded in them.
package issuer

import (
	"context"
	"errors"

	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// ErrPrincipalNotFound is returned when the issuer holds no claims for
// the principal. The delete path treats it as success.
var ErrPrincipalNotFound = errors.New("issuer: principal not found")

type Issuer interface {
	SetClaims(ctx context.Context, principalID string, claims model.Claims) error
	ClearClaims(ctx context.Context, principalID string) error
	GetClaims(ctx context.Context, principalID string) (model.Claims, error)
}

// IsPermanent reports whether an issuer error cannot be fixed by
// retrying. Everything else (network errors, issuer unavailability) is
// considered transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPrincipalNotFound) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var perm *PermanentError
	return errors.As(err, &perm)
}

// PermanentError marks an issuer failure that retrying cannot repair,
// such as a malformed claims payload rejected by the issuer.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "issuer: permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

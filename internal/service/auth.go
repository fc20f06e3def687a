package service

import (
	"context"
	"crypto/subtle"

	"github.com/utafrali/zaver-checkout/internal/domain"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
	"github.com/utafrali/zaver-checkout/pkg/middleware"
)

// VerifyOrderKey checks the capability token presented with a callback or
// redirect against the order's key in constant time.
func VerifyOrderKey(o *domain.Order, key string) error {
	if key == "" || o.OrderKey == "" {
		return apperrors.Unauthorized("invalid order key")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(o.OrderKey)) != 1 {
		return apperrors.Unauthorized("invalid order key")
	}
	return nil
}

// representative returns the e-mail of the authenticated staff member, or ""
// when the request is not staff-authenticated.
func representative(ctx context.Context) string {
	if c := middleware.ClaimsFromContext(ctx); c != nil {
		return c.Email
	}
	return ""
}

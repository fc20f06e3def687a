package zaver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// ErrInvalidCallbackToken is returned when a callback does not carry the
// configured callback token.
var ErrInvalidCallbackToken = errors.New("invalid callback token")

const maxCallbackBody = 1 << 20

// verifyCallbackToken checks the callback header against token in constant
// time. An empty token disables the check.
func verifyCallbackToken(r *http.Request, token string) error {
	if token == "" {
		return nil
	}
	got := r.Header.Get(CallbackTokenHeader)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return apperrors.New("UNAUTHORIZED", "invalid callback token", http.StatusUnauthorized,
			fmt.Errorf("%w: %w", ErrInvalidCallbackToken, apperrors.ErrUnauthorized))
	}
	return nil
}

func decodeCallback(r *http.Request, token string, dst any) error {
	if err := verifyCallbackToken(r, token); err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("read callback body: %v", err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("decode callback body: %v", err))
	}
	return nil
}

// DecodePaymentCallback authenticates r with token and decodes its body.
func DecodePaymentCallback(r *http.Request, token string) (*PaymentStatusResponse, error) {
	var status PaymentStatusResponse
	if err := decodeCallback(r, token, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DecodeRefundCallback authenticates r with token and decodes its body.
func DecodeRefundCallback(r *http.Request, token string) (*RefundResponse, error) {
	var refund RefundResponse
	if err := decodeCallback(r, token, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

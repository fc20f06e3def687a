package service

import (
	"net/url"
	"strings"

	"github.com/utafrali/zaver-checkout/internal/domain"
)

// Query flag appended to the checkout URL when a redirect-path payment fails.
const (
	NoticeParam        = "zco_notice"
	NoticePaymentError = "payment_error"
)

// URLs builds the storefront and callback URLs handed to the provider and to
// shoppers.
type URLs struct {
	base string
}

// NewURLs creates a URL builder rooted at the storefront base URL.
func NewURLs(base string) URLs {
	return URLs{base: strings.TrimRight(base, "/")}
}

// Home returns the storefront base URL.
func (u URLs) Home() string { return u.base }

// Secure reports whether the storefront is served over https. Callback URLs
// are only handed to the provider when it is.
func (u URLs) Secure() bool {
	return strings.HasPrefix(strings.ToLower(u.base), "https://")
}

// OrderReceived is the success URL the shopper returns to after paying.
func (u URLs) OrderReceived(o *domain.Order) string {
	return u.withKey("/checkout/order-received/"+url.PathEscape(o.ID), o.OrderKey)
}

// OrderPay is the storefront page hosting the provider's payment widget.
func (u URLs) OrderPay(o *domain.Order) string {
	return u.withKey("/checkout/order-pay/"+url.PathEscape(o.ID)+"/", o.OrderKey)
}

// Cancel returns the URL that cancels a pending order and restores the cart.
func (u URLs) Cancel(o *domain.Order) string {
	q := url.Values{}
	q.Set("cancel_order", "true")
	q.Set("order", o.OrderKey)
	q.Set("order_id", o.ID)
	return u.base + "/cart/?" + q.Encode()
}

// Checkout returns the storefront checkout URL.
func (u URLs) Checkout() string {
	return u.base + "/checkout/"
}

// CheckoutError returns the checkout URL flagged to show a payment error
// notice.
func (u URLs) CheckoutError() string {
	return u.Checkout() + "?" + NoticeParam + "=" + NoticePaymentError
}

// PaymentCallback returns the payment webhook URL for o, or "" when the
// storefront is not served over https.
func (u URLs) PaymentCallback(o *domain.Order) string {
	if !u.Secure() {
		return ""
	}
	return u.withKey("/wc-api/zaver_payment_callback", o.OrderKey)
}

// RefundCallback returns the refund webhook URL for o, or "" when the
// storefront is not served over https.
func (u URLs) RefundCallback(o *domain.Order) string {
	if !u.Secure() {
		return ""
	}
	return u.withKey("/wc-api/zaver_refund_callback", o.OrderKey)
}

func (u URLs) withKey(path, key string) string {
	return u.base + path + "?key=" + url.QueryEscape(key)
}

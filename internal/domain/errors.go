package domain

import "errors"

// ErrCouponRejected is returned by pricers when a code is unknown, expired or
// not applicable to the cart. Any other pricer error is treated as a failure
// to reach a verdict.
var ErrCouponRejected = errors.New("coupon rejected")

package models

import "errors"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order id already exists")
	ErrEmptyOrder     = errors.New("order has no items")
	ErrAmountMismatch = errors.New("order amount does not match item prices")
	ErrAlreadyFinal   = errors.New("order is already in a terminal state")
	ErrInvalidStatus  = errors.New("invalid order status transition")
)

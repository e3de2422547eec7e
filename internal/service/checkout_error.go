package service

import (
	"errors"
	"fmt"
	"strings"
)

type CheckoutError error

var (
	ErrValidation          CheckoutError = errors.New("validation failed")
	ErrVariantNotFound     CheckoutError = errors.New("variant not found")
	ErrInsufficientStock   CheckoutError = errors.New("insufficient stock")
	ErrTransactionConflict CheckoutError = errors.New("transaction conflict")
	ErrStoreUnavailable    CheckoutError = errors.New("store unavailable")
	ErrForbidden                         = errors.New("forbidden")
)

// ValidationError 任何 store 呼叫之前就被擋下
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = "missing required fields"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// VariantNotFoundError 品項的 (color, size) 已經不存在
type VariantNotFoundError struct {
	Item string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant not found for %s", e.Item)
}

func (e *VariantNotFoundError) Unwrap() error {
	return ErrVariantNotFound
}

type InsufficientStockError struct {
	Item      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, only %d left", e.Item, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type TransactionConflictError struct {
	Err error
}

func (e *TransactionConflictError) Error() string {
	if e.Err == nil {
		return ErrTransactionConflict.Error()
	}
	return fmt.Sprintf("%s: %v", ErrTransactionConflict, e.Err)
}

func (e *TransactionConflictError) Unwrap() []error {
	return []error{ErrTransactionConflict, e.Err}
}

type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err == nil {
		return ErrStoreUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrStoreUnavailable, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// UserMessage 顯示給使用者的單一訊息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		validation   *ValidationError
		notFound     *VariantNotFoundError
		insufficient *InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		if len(validation.Fields) > 0 && validation.Reason == "" {
			return "Please fill in: " + strings.Join(validation.Fields, ", ")
		}
		return validation.Error()
	case errors.As(err, &notFound):
		return fmt.Sprintf("%s is no longer available", notFound.Item)
	case errors.As(err, &insufficient):
		return fmt.Sprintf("Not enough stock for %s. Only %d left.", insufficient.Item, insufficient.Available)
	case errors.Is(err, ErrTransactionConflict):
		return "Your order could not be completed because stock changed. Please try again."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to perform this action."
	default:
		return "Order failed. Please try again later."
	}
}

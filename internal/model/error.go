package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON           = "INVALID_JSON"
	ErrCodeMissingField          = "MISSING_FIELD"
	ErrCodeEmptyCart             = "EMPTY_CART"
	ErrCodeMissingBuyerEmail     = "MISSING_BUYER_EMAIL"
	ErrCodeInvalidQuantity       = "INVALID_QUANTITY"
	ErrCodeInvalidAmount         = "INVALID_AMOUNT"
	ErrCodeCurrencyMismatch      = "CURRENCY_MISMATCH"
	ErrCodeUnsupportedCurrency   = "UNSUPPORTED_CURRENCY"
	ErrCodeTicketTypeNotFound    = "TICKET_TYPE_NOT_FOUND"
	ErrCodePriceMismatch         = "PRICE_MISMATCH"
	ErrCodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	ErrCodeMaxPerOrderExceeded   = "MAX_PER_ORDER_EXCEEDED"
	ErrCodeMissingReference      = "MISSING_REFERENCE"
	ErrCodeInvalidQRPayload      = "INVALID_QR_PAYLOAD"
	ErrCodeInvalidScannerRole    = "INVALID_SCANNER_ROLE"
	ErrCodeInvalidEvent          = "INVALID_EVENT"
	ErrCodeInvalidTicketType     = "INVALID_TICKET_TYPE"
	ErrCodeEventHasSales         = "EVENT_HAS_SALES"
	ErrCodeNothingToPayout       = "NOTHING_TO_PAYOUT"
	ErrCodePayoutPending         = "PAYOUT_PENDING"
	ErrCodePayoutNotFound        = "PAYOUT_NOT_FOUND"
	ErrCodeInvalidPayoutStatus   = "INVALID_PAYOUT_STATUS"
	ErrCodeEventNotFound         = "EVENT_NOT_FOUND"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodeTicketNotFound        = "TICKET_NOT_FOUND"
	ErrCodeNotAuthorized         = "NOT_AUTHORIZED"
	ErrCodeTicketInvalid         = "TICKET_INVALID"
	ErrCodeTicketNotDeletable    = "TICKET_NOT_DELETABLE"
	ErrCodePaymentNotVerified    = "PAYMENT_NOT_VERIFIED"
	ErrCodeInvalidOrderState     = "INVALID_ORDER_STATE"
	ErrCodeAmountMismatch        = "AMOUNT_MISMATCH"
	ErrCodeGatewayInitFailed     = "GATEWAY_INIT_FAILED"
	ErrCodeGatewayVerifyFailed   = "GATEWAY_VERIFY_FAILED"
	ErrCodeMissingCredential     = "MISSING_CREDENTIAL"
	ErrCodeInvalidSignature      = "INVALID_SIGNATURE"
	ErrCodeConflict              = "CONFLICT"
	ErrCodeReconciliationFailed  = "RECONCILIATION_FAILED"
	ErrCodeUnauthorised          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// ErrorKind groups domain errors by how callers should react to them.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindNotAuthorized ErrorKind = "not_authorized"
	KindSignature     ErrorKind = "signature"
	KindGateway       ErrorKind = "gateway"
	KindConflict      ErrorKind = "conflict"
	KindInternal      ErrorKind = "internal"
)

// Domain errors for business logic
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Intake validation
var (
	ErrEmptyCart             = NewDomainError(KindValidation, ErrCodeEmptyCart, "Cart must contain at least one item")
	ErrMissingBuyerEmail     = NewDomainError(KindValidation, ErrCodeMissingBuyerEmail, "Buyer email is required")
	ErrInvalidQuantity       = NewDomainError(KindValidation, ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidAmount         = NewDomainError(KindValidation, ErrCodeInvalidAmount, "Order total must be greater than zero")
	ErrCurrencyMismatch      = NewDomainError(KindValidation, ErrCodeCurrencyMismatch, "All items must share one currency")
	ErrUnsupportedCurrency   = NewDomainError(KindValidation, ErrCodeUnsupportedCurrency, "Currency is not supported by the payment gateway")
	ErrTicketTypeNotFound    = NewDomainError(KindValidation, ErrCodeTicketTypeNotFound, "One or more ticket types not found")
	ErrPriceMismatch         = NewDomainError(KindValidation, ErrCodePriceMismatch, "Item price does not match the current ticket price")
	ErrInsufficientInventory = NewDomainError(KindValidation, ErrCodeInsufficientInventory, "Not enough tickets left for this ticket type")
	ErrMaxPerOrderExceeded   = NewDomainError(KindValidation, ErrCodeMaxPerOrderExceeded, "Quantity exceeds the per-order limit for this ticket type")
	ErrMissingReference      = NewDomainError(KindValidation, ErrCodeMissingReference, "Payment reference is required")
	ErrInvalidQRPayload      = NewDomainError(KindValidation, ErrCodeInvalidQRPayload, "QR payload is not a valid ticket code")
	ErrInvalidScannerRole    = NewDomainError(KindValidation, ErrCodeInvalidScannerRole, "Role must be scanner or manager")
)

// Seller catalog and payouts
var (
	ErrInvalidEvent       = NewDomainError(KindValidation, ErrCodeInvalidEvent, "Event needs a title, a start time and a status of draft or published")
	ErrInvalidTicketType  = NewDomainError(KindValidation, ErrCodeInvalidTicketType, "Ticket types need a name, a non-negative price and a positive quantity")
	ErrNotEventOwner      = NewDomainError(KindNotAuthorized, ErrCodeNotAuthorized, "Not authorized for this event")
	ErrEventHasSales      = NewDomainError(KindConflict, ErrCodeEventHasSales, "Events with sold tickets cannot be deleted")
	ErrNothingToPayout    = NewDomainError(KindValidation, ErrCodeNothingToPayout, "No balance available for payout")
	ErrPayoutPending      = NewDomainError(KindConflict, ErrCodePayoutPending, "A payout request is already pending")
	ErrPayoutNotFound     = NewDomainError(KindNotFound, ErrCodePayoutNotFound, "Payout request not found")
	ErrInvalidPayoutState = NewDomainError(KindValidation, ErrCodeInvalidPayoutStatus, "Payout can only move from pending to paid or rejected")
)

// Lookup and authorization
var (
	ErrEventNotFound  = NewDomainError(KindNotFound, ErrCodeEventNotFound, "Event not found")
	ErrOrderNotFound  = NewDomainError(KindNotFound, ErrCodeOrderNotFound, "Order not found")
	ErrTicketNotFound = NewDomainError(KindNotFound, ErrCodeTicketNotFound, "Ticket not found")
	ErrNotAuthorized  = NewDomainError(KindNotAuthorized, ErrCodeNotAuthorized, "Not authorized for this ticket")
)

// Ticket and order state
var (
	ErrTicketInvalid      = NewDomainError(KindValidation, ErrCodeTicketInvalid, "Ticket is not valid for entry")
	ErrTicketNotDeletable = NewDomainError(KindValidation, ErrCodeTicketNotDeletable, "Only unused tickets can be deleted")
	ErrPaymentNotVerified = NewDomainError(KindValidation, ErrCodePaymentNotVerified, "Payment has not been completed")
	ErrInvalidOrderState  = NewDomainError(KindConflict, ErrCodeInvalidOrderState, "Order can no longer be marked as paid")
	ErrAmountMismatch     = NewDomainError(KindConflict, ErrCodeAmountMismatch, "Paid amount does not cover the order total")
)

// Gateway
var (
	ErrGatewayInitFailed   = NewDomainError(KindGateway, ErrCodeGatewayInitFailed, "Payment gateway could not start a session")
	ErrGatewayVerifyFailed = NewDomainError(KindGateway, ErrCodeGatewayVerifyFailed, "Payment gateway could not verify the payment")
	ErrMissingCredential   = NewDomainError(KindInternal, ErrCodeMissingCredential, "Payment gateway credentials are not configured")
	ErrInvalidSignature    = NewDomainError(KindSignature, ErrCodeInvalidSignature, "Invalid webhook signature")
)

// Store
var (
	ErrConflict             = NewDomainError(KindConflict, ErrCodeConflict, "Transaction conflicted with a concurrent write")
	ErrReconciliationFailed = NewDomainError(KindInternal, ErrCodeReconciliationFailed, "Payment received but tickets could not be issued")
)

// ReconciliationError reports a verified payment whose order could not be
// settled. It keeps the order identity so support can retry it.
type ReconciliationError struct {
	OrderID   string
	Reference string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for reference %s (order %s): %v", e.Reference, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// Is matches ErrReconciliationFailed so callers can test for the failure class.
func (e *ReconciliationError) Is(target error) bool {
	return target == ErrReconciliationFailed
}

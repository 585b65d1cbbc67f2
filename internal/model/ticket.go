package model

import "time"

// TicketStatus is the redemption state of a ticket.
type TicketStatus string

const (
	TicketUnused    TicketStatus = "unused"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketRefunded  TicketStatus = "refunded"
)

// Ticket is a single admission issued for one unit of a paid line item.
type Ticket struct {
	ID             string       `json:"id" db:"id"`
	OrderID        string       `json:"orderId" db:"order_id"`
	OrderReference string       `json:"orderReference" db:"order_reference"`
	BuyerID        *string      `json:"buyerId,omitempty" db:"buyer_id"`
	BuyerEmail     string       `json:"buyerEmail" db:"buyer_email"`
	SellerID       string       `json:"sellerId" db:"seller_id"`
	EventID        string       `json:"eventId" db:"event_id"`
	EventTitle     string       `json:"eventTitle,omitempty" db:"event_title"`
	TicketTypeID   string       `json:"ticketTypeId" db:"ticket_type_id"`
	TypeName       string       `json:"typeName" db:"type_name"`
	Status         TicketStatus `json:"status" db:"status"`
	IssuedAt       time.Time    `json:"issuedAt" db:"issued_at"`
	ScannedAt      *time.Time   `json:"scannedAt,omitempty" db:"scanned_at"`
	QRPayload      string       `json:"qrPayload" db:"qr_payload"`
	LineIndex      int          `json:"-" db:"line_index"`
	UnitIndex      int          `json:"-" db:"unit_index"`
}

// Scan is the audit record of a successful check-in.
type Scan struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticketId" db:"ticket_id"`
	ScannerID string    `json:"scannedBy" db:"scanner_id"`
	EventID   string    `json:"eventId" db:"event_id"`
	ScannedAt time.Time `json:"scannedAt" db:"scanned_at"`
}

// CheckInOutcome is the result reported to the gate.
type CheckInOutcome string

const (
	CheckInValid       CheckInOutcome = "valid"
	CheckInAlreadyUsed CheckInOutcome = "already_used"
)

// CheckInResult represents the response payload for a scan.
type CheckInResult struct {
	Result CheckInOutcome `json:"result"`
	Ticket Ticket         `json:"ticket"`
}

// ScanRequest represents the request payload for a scan. Either the raw QR
// payload or a bare ticket id is accepted.
type ScanRequest struct {
	QRPayload string `json:"qrPayload,omitempty"`
	TicketID  string `json:"ticketId,omitempty"`
}

// ScannerRole is the permission a seller grants to gate staff.
type ScannerRole string

const (
	RoleScanner ScannerRole = "scanner"
	RoleManager ScannerRole = "manager"
)

// Valid reports whether the role is one of the known roles.
func (r ScannerRole) Valid() bool {
	return r == RoleScanner || r == RoleManager
}

// ScannerAccess allows MemberID to check in tickets sold by SellerID.
type ScannerAccess struct {
	SellerID  string      `json:"sellerId" db:"seller_id"`
	MemberID  string      `json:"memberId" db:"member_id"`
	Role      ScannerRole `json:"role" db:"role"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

// ScannerAccessRequest represents the request payload for granting access.
type ScannerAccessRequest struct {
	MemberID string      `json:"memberId"`
	Role     ScannerRole `json:"role"`
}

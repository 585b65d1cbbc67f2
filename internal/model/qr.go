package model

import (
	"encoding/json"
	"strings"
)

// QRPayload is the content encoded into a ticket's QR code.
type QRPayload struct {
	TicketID     string `json:"t"`
	EventID      string `json:"e"`
	TicketTypeID string `json:"tt"`
}

// Encode renders the payload as compact JSON.
func (p QRPayload) Encode() string {
	data, _ := json.Marshal(p)
	return string(data)
}

// ParseQRPayload decodes a scanned QR string. Only the ticket id is required.
func ParseQRPayload(raw string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return QRPayload{}, ErrInvalidQRPayload
	}
	if strings.TrimSpace(p.TicketID) == "" {
		return QRPayload{}, ErrInvalidQRPayload
	}
	return p, nil
}

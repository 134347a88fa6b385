package wompi

import "strings"

// TransactionStatus is the status reported by the gateway for a transaction.
type TransactionStatus string

const (
	StatusApproved TransactionStatus = "APPROVED"
	StatusDeclined TransactionStatus = "DECLINED"
	StatusPending  TransactionStatus = "PENDING"
	StatusError    TransactionStatus = "ERROR"
	StatusVoided   TransactionStatus = "VOIDED"
	StatusUnknown  TransactionStatus = "UNKNOWN"
)

// ParseStatus maps a raw gateway status onto the closed set, falling back to
// StatusUnknown for anything it does not recognise.
func ParseStatus(raw string) TransactionStatus {
	switch s := TransactionStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusApproved, StatusDeclined, StatusPending, StatusError, StatusVoided:
		return s
	default:
		return StatusUnknown
	}
}

func (s TransactionStatus) IsFinal() bool {
	switch s {
	case StatusApproved, StatusDeclined, StatusError, StatusVoided:
		return true
	}
	return false
}

func (s TransactionStatus) String() string { return string(s) }

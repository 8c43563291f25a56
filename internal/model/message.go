package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MessageKind is the body type reported by the messaging gateway.
type MessageKind string

// Supported message kinds. Anything else is rejected at the boundary.
const (
	MessageKindText  MessageKind = "text"
	MessageKindAudio MessageKind = "audio"
)

// InboundMessage is a gateway event reporting one or more transactions in
// free form. For audio messages the gateway delivers the transcript as the
// payload.
type InboundMessage struct {
	Timestamp      time.Time
	SenderIdentity string
	Kind           MessageKind
	Payload        string
	MessageID      string
	Channel        string
}

// ExtractedTransaction is one candidate record produced by the extraction
// service from a transcript.
type ExtractedTransaction struct {
	Amount        decimal.Decimal
	Direction     TransactionDirection
	Category      string
	Description   string
	PaymentMethod string
	Currency      string
}

// ExtractionResult is the extraction service's answer for one transcript.
// Zero candidates is a valid outcome, not an error.
type ExtractionResult struct {
	Transactions []ExtractedTransaction
	IsMultiple   bool
}

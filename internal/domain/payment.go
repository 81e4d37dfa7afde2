package domain

import "strconv"

// CreditPack is a purchasable bundle of credits.
type CreditPack struct {
	Credits     string
	ProductName string
	AmountCents int64
}

var creditPacks = map[string]CreditPack{
	"1": {Credits: "1", ProductName: "One Credit Purchase", AmountCents: 300},
	"3": {Credits: "3", ProductName: "Three Credits Purchase", AmountCents: 799},
	"5": {Credits: "5", ProductName: "Five Credits Purchase", AmountCents: 1200},
}

// CreditPackFor returns the pack for a credit option.
func CreditPackFor(credit string) (CreditPack, bool) {
	p, ok := creditPacks[credit]
	return p, ok
}

// Metadata keys carried on the payment intent.
const (
	MetaClientReferenceID = "client_reference_id"
	MetaSueReason         = "sue_reason"
	MetaCreditAmount      = "credit_amount"
)

// Messages sent to subscribers after payment events.
const (
	PaymentFailedMessage   = "⚠️ Payment failed! Try to use another card."
	paymentReceivedMessage = "✅ Payment received! Your new credits: "
)

// PaymentReceivedMessage renders the confirmation for a new balance.
func PaymentReceivedMessage(balance int) string {
	return paymentReceivedMessage + strconv.Itoa(balance)
}

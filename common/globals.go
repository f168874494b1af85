package common

const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"

	VerificationModeTxKey   = "tx_key"
	VerificationModeBalance = "balance"

	X402Version = 2
	SchemeExact = "exact"

	// 1 XMR = 10^12 piconero
	PiconeroPerXMR = 1e12
)

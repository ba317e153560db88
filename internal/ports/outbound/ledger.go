package outbound

import "context"

// Settlement is the observable outcome of a ledger transfer.
type Settlement struct {
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	AmountCents int64  `json:"amount_cents"`
}

// Ledger is the opaque transfer capability. Execution itself is out of
// scope; agents submit a transfer and later observe its settlement by
// receipt. AwaitSettlement blocks until the settlement is visible or the
// context expires.
type Ledger interface {
	// SubmitTransfer moves amountCents from one wallet to another and
	// returns the transaction hash acting as the receipt.
	SubmitTransfer(ctx context.Context, from, to string, amountCents int64) (string, error)

	// AwaitSettlement waits for the settlement event of an earlier
	// transfer and returns what was actually recorded.
	AwaitSettlement(ctx context.Context, txHash string) (*Settlement, error)
}

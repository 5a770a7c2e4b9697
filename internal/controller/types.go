package controller

type VerifyRequest struct {
	TxHash string
	// To optionally restricts the transfer recipient.
	To string
}

type VerifyResult struct {
	Valid       bool
	From        string
	To          string
	Value       string
	BlockNumber uint64
	Reason      string
}

type MintRequest struct {
	TxHash      string
	Beneficiary string
}

type MintResult struct {
	MintTxHash   string
	PaymentFrom  string
	PaymentValue string
	// BlockNumber is the block of the payment, not of the mint.
	BlockNumber     uint64
	MintBlockNumber uint64
}

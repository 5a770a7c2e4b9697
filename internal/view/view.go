package view

// ErrorResponse is the body of any failed request outside /mint.
type ErrorResponse struct {
	Error string `json:"error"`
}

type VerifyResponse struct {
	Valid       bool   `json:"valid"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Value       string `json:"value,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// MintResponse carries Reason for classified failures and Error for unexpected ones.
type MintResponse struct {
	Success      bool   `json:"success"`
	MintTxHash   string `json:"mintTxHash,omitempty"`
	PaymentFrom  string `json:"paymentFrom,omitempty"`
	PaymentValue string `json:"paymentValue,omitempty"`
	BlockNumber  uint64 `json:"blockNumber,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Response[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func CreateResponse[T any](data T, err error, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

type PaymentsResponse struct {
	Total    int64     `json:"total"`
	Payments []Payment `json:"payments"`
}

// Payment is a ledger record as exposed for reconciliation.
type Payment struct {
	TxHash       string `json:"txHash"`
	State        string `json:"state"`
	Beneficiary  string `json:"beneficiary,omitempty"`
	PaymentFrom  string `json:"paymentFrom,omitempty"`
	PaymentValue string `json:"paymentValue,omitempty"`
	MintTxHash   string `json:"mintTxHash,omitempty"`
	ExpiresAt    string `json:"expiresAt"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

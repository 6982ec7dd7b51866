package ton

import "github.com/shopspring/decimal"

// Transfer is one inbound TON payment observed on the deposit address.
type Transfer struct {
	TxHash    string
	Source    string
	Dest      string
	AmountTON decimal.Decimal
	Comment   string
	Lt        int64
	Utime     int64
}

// rawTransaction mirrors the toncenter-style indexer response shape. Only
// the fields the confirmation path needs are decoded.
type rawTransaction struct {
	TransactionID struct {
		Hash string `json:"hash"`
		Lt   string `json:"lt"`
	} `json:"transaction_id"`
	Utime int64 `json:"utime"`
	InMsg struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Value       string `json:"value"`
		Message     string `json:"message"`
	} `json:"in_msg"`
}

// nanoTON is the number of nanotons in one TON.
var nanoTON = decimal.NewFromInt(1_000_000_000)

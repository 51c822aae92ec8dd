package cryptopay

// 发票状态，与平台返回值一致
const (
	InvoiceStatusActive  = "active"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusExpired = "expired"
)

// Invoice 平台侧发票记录
type Invoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
	PayURL    string `json:"pay_url"`
}

type createInvoiceResult struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	PayURL    string `json:"pay_url"`
}

type getInvoicesResult struct {
	Items []Invoice `json:"items"`
}

type balanceItem struct {
	CurrencyCode string `json:"currency_code"`
	Available    string `json:"available"`
}

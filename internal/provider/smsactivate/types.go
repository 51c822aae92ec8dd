package smsactivate

// 激活状态，与平台文本协议一致
const (
	StatusWaitCode   = "STATUS_WAIT_CODE"
	StatusWaitRetry  = "STATUS_WAIT_RETRY"
	StatusOK         = "STATUS_OK"
	StatusCancel     = "STATUS_CANCEL"
	StatusFinish     = "STATUS_FINISH"
	StatusRevoke     = "STATUS_REVOKE"
	StatusWaitResend = "STATUS_WAIT_RESEND"
)

// setStatus 的控制码
const (
	SetStatusRetry   = 3
	SetStatusConfirm = 6
	SetStatusCancel  = 8
)

// Service 平台支持的业务服务
type Service struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CountryOffer 指定服务在单个国家的号源概况
type CountryOffer struct {
	CountryID int     `json:"country"`
	Count     int     `json:"count"`
	Price     float64 `json:"retail_price"`
}

// Number 已下发的激活号码
type Number struct {
	ID    int64
	Phone string
}

// RentedNumber 已下发的租用号码
type RentedNumber struct {
	ID      int64
	Phone   string
	EndDate string
}

// RentSms 租用号码收到的单条短信
type RentSms struct {
	Phone string `json:"phoneFrom"`
	Text  string `json:"text"`
	Date  string `json:"date"`
}

// RentStatus 租用状态查询结果。Message 为文本状态，
// Values 仅在收到短信时非空。
type RentStatus struct {
	Status   string
	Message  string
	Quantity int
	Values   []RentSms
}

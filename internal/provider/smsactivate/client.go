package smsactivate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAPIFailed      = errors.New("号码平台请求失败")
	ErrNoNumbers      = errors.New("号码平台无可用号码")
	ErrBadKey         = errors.New("号码平台密钥无效")
	ErrNoBalance      = errors.New("号码平台余额不足")
	ErrUnexpectedBody = errors.New("号码平台响应格式异常")
)

// API 短信号码平台的调用接口
type API interface {
	// GetBalance 查询平台账户余额
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	// GetNumber 申请一个激活号码
	GetNumber(ctx context.Context, service string, countryID int) (*Number, error)
	// GetStatus 查询激活状态，STATUS_OK 时第二个返回值为验证码
	GetStatus(ctx context.Context, activationID int64) (string, string, error)
	// SetStatus 变更激活状态，code 取 SetStatus* 控制码
	SetStatus(ctx context.Context, activationID int64, code int) error
	// GetServices 列出平台支持的业务服务
	GetServices(ctx context.Context) ([]Service, error)
	// GetTopCountries 查询指定服务在各国的号源与单价
	GetTopCountries(ctx context.Context, service string) ([]CountryOffer, error)
	// GetPrice 查询指定国家指定服务的激活单价
	GetPrice(ctx context.Context, service string, countryID int) (decimal.Decimal, error)
	// GetRentPrice 查询指定时长的租用单价
	GetRentPrice(ctx context.Context, service string, hours int, countryID int) (decimal.Decimal, error)
	// GetRentNumber 申请一个租用号码
	GetRentNumber(ctx context.Context, service string, hours int, countryID int) (*RentedNumber, error)
	// GetRentStatus 查询租用号码的状态与短信
	GetRentStatus(ctx context.Context, rentID int64) (*RentStatus, error)
	// CancelRent 取消租用
	CancelRent(ctx context.Context, rentID int64) error
}

// Client 基于 handler_api 文本协议的平台客户端
type Client struct {
	baseURL string
	apiKey  string
	httpCli *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpCli: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, action string, extra url.Values) (string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("action", action)
	for key, values := range extra {
		for _, v := range values {
			params.Add(key, v)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPIFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPIFailed, err)
	}
	text := strings.TrimSpace(string(body))
	switch text {
	case "BAD_KEY":
		return "", ErrBadKey
	case "NO_BALANCE":
		return "", ErrNoBalance
	case "NO_NUMBERS":
		return "", ErrNoNumbers
	}
	return text, nil
}

func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	text, err := c.call(ctx, "getBalance", nil)
	if err != nil {
		return decimal.Zero, err
	}
	// 格式: ACCESS_BALANCE:<amount>
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 || parts[0] != "ACCESS_BALANCE" {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	amount, err := decimal.NewFromString(parts[1])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	return amount, nil
}

func (c *Client) GetNumber(ctx context.Context, service string, countryID int) (*Number, error) {
	extra := url.Values{}
	extra.Set("service", service)
	extra.Set("country", strconv.Itoa(countryID))
	text, err := c.call(ctx, "getNumber", extra)
	if err != nil {
		return nil, err
	}
	// 格式: ACCESS_NUMBER:<id>:<phone>
	parts := strings.SplitN(text, ":", 3)
	if len(parts) != 3 || parts[0] != "ACCESS_NUMBER" {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	return &Number{ID: id, Phone: parts[2]}, nil
}

func (c *Client) GetStatus(ctx context.Context, activationID int64) (string, string, error) {
	extra := url.Values{}
	extra.Set("id", strconv.FormatInt(activationID, 10))
	text, err := c.call(ctx, "getStatus", extra)
	if err != nil {
		return "", "", err
	}
	// STATUS_OK 带验证码，其余为裸状态
	if code, found := strings.CutPrefix(text, StatusOK+":"); found {
		return StatusOK, code, nil
	}
	return text, "", nil
}

func (c *Client) SetStatus(ctx context.Context, activationID int64, code int) error {
	extra := url.Values{}
	extra.Set("id", strconv.FormatInt(activationID, 10))
	extra.Set("status", strconv.Itoa(code))
	_, err := c.call(ctx, "setStatus", extra)
	return err
}

func (c *Client) GetServices(ctx context.Context) ([]Service, error) {
	text, err := c.call(ctx, "getServicesList", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Status   string    `json:"status"`
		Services []Service `json:"services"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrAPIFailed, text)
	}
	return body.Services, nil
}

func (c *Client) GetTopCountries(ctx context.Context, service string) ([]CountryOffer, error) {
	extra := url.Values{}
	extra.Set("service", service)
	text, err := c.call(ctx, "getTopCountriesByService", extra)
	if err != nil {
		return nil, err
	}
	var body map[string]CountryOffer
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	offers := make([]CountryOffer, 0, len(body))
	for _, offer := range body {
		if offer.Count > 0 {
			offers = append(offers, offer)
		}
	}
	return offers, nil
}

func (c *Client) GetPrice(ctx context.Context, service string, countryID int) (decimal.Decimal, error) {
	extra := url.Values{}
	extra.Set("service", service)
	extra.Set("country", strconv.Itoa(countryID))
	text, err := c.call(ctx, "getPrices", extra)
	if err != nil {
		return decimal.Zero, err
	}
	// 格式: {"<country>":{"<service>":{"cost":..,"count":..}}}
	var body map[string]map[string]struct {
		Cost  json.Number `json:"cost"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	entry, ok := body[strconv.Itoa(countryID)][service]
	if !ok {
		return decimal.Zero, ErrNoNumbers
	}
	if entry.Count == 0 {
		return decimal.Zero, ErrNoNumbers
	}
	price, err := decimal.NewFromString(entry.Cost.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	return price, nil
}

func (c *Client) GetRentPrice(ctx context.Context, service string, hours int, countryID int) (decimal.Decimal, error) {
	extra := url.Values{}
	extra.Set("rent_time", strconv.Itoa(hours))
	extra.Set("country", strconv.Itoa(countryID))
	text, err := c.call(ctx, "getRentServicesAndCountries", extra)
	if err != nil {
		return decimal.Zero, err
	}
	var body struct {
		Services map[string]struct {
			Cost json.Number `json:"retail_cost"`
		} `json:"services"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	entry, ok := body.Services[service]
	if !ok {
		return decimal.Zero, ErrNoNumbers
	}
	price, err := decimal.NewFromString(entry.Cost.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	return price, nil
}

func (c *Client) GetRentNumber(ctx context.Context, service string, hours int, countryID int) (*RentedNumber, error) {
	extra := url.Values{}
	extra.Set("service", service)
	extra.Set("rent_time", strconv.Itoa(hours))
	extra.Set("country", strconv.Itoa(countryID))
	text, err := c.call(ctx, "getRentNumber", extra)
	if err != nil {
		return nil, err
	}
	var body struct {
		Status string `json:"status"`
		Phone  struct {
			ID      int64  `json:"id"`
			Number  string `json:"number"`
			EndDate string `json:"endDate"`
		} `json:"phone"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrAPIFailed, body.Message)
	}
	return &RentedNumber{ID: body.Phone.ID, Phone: body.Phone.Number, EndDate: body.Phone.EndDate}, nil
}

func (c *Client) GetRentStatus(ctx context.Context, rentID int64) (*RentStatus, error) {
	extra := url.Values{}
	extra.Set("id", strconv.FormatInt(rentID, 10))
	text, err := c.call(ctx, "getRentStatus", extra)
	if err != nil {
		return nil, err
	}
	var body struct {
		Status   string             `json:"status"`
		Message  string             `json:"message"`
		Quantity string             `json:"quantity"`
		Values   map[string]RentSms `json:"values"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	result := &RentStatus{Status: body.Status, Message: body.Message}
	if body.Quantity != "" {
		result.Quantity, _ = strconv.Atoi(body.Quantity)
	}
	// values 以 "0".."n" 为键，按数字序还原短信到达顺序
	keys := make([]string, 0, len(body.Values))
	for key := range body.Values {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	for _, key := range keys {
		result.Values = append(result.Values, body.Values[key])
	}
	return result, nil
}

func (c *Client) CancelRent(ctx context.Context, rentID int64) error {
	extra := url.Values{}
	extra.Set("id", strconv.FormatInt(rentID, 10))
	extra.Set("status", "2")
	text, err := c.call(ctx, "setRentStatus", extra)
	if err != nil {
		return err
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return fmt.Errorf("%w: %s", ErrUnexpectedBody, text)
	}
	if body.Status != "success" {
		return fmt.Errorf("%w: %s", ErrAPIFailed, body.Message)
	}
	return nil
}

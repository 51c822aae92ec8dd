package cryptopay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrAPIFailed = errors.New("支付平台请求失败")

// API 加密货币收款平台的调用接口
type API interface {
	// GetBalance 查询指定币种的可用余额
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	// CreateInvoice 创建发票，返回发票号与支付链接
	CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (int64, string, error)
	// GetInvoices 批量查询发票状态
	GetInvoices(ctx context.Context, invoiceIDs []int64) ([]Invoice, error)
}

// Client 基于 HTTP 的平台客户端
type Client struct {
	baseURL string
	token   string
	httpCli *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpCli: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := c.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIFailed, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code int    `json:"code"`
			Name string `json:"name"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: 响应解析失败: %v", ErrAPIFailed, err)
	}
	if !envelope.OK {
		if envelope.Error != nil {
			return fmt.Errorf("%w: code=%d name=%s", ErrAPIFailed, envelope.Error.Code, envelope.Error.Name)
		}
		return ErrAPIFailed
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("%w: 结果解析失败: %v", ErrAPIFailed, err)
		}
	}
	return nil
}

func (c *Client) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	var items []balanceItem
	if err := c.call(ctx, "getBalance", nil, &items); err != nil {
		return decimal.Zero, err
	}
	for _, item := range items {
		if item.CurrencyCode == asset {
			amount, err := decimal.NewFromString(item.Available)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: 余额格式异常: %v", ErrAPIFailed, err)
			}
			return amount, nil
		}
	}
	return decimal.Zero, nil
}

func (c *Client) CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (int64, string, error) {
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("amount", amount.String())
	if description != "" {
		params.Set("description", description)
	}
	var result createInvoiceResult
	if err := c.call(ctx, "createInvoice", params, &result); err != nil {
		return 0, "", err
	}
	return result.InvoiceID, result.PayURL, nil
}

func (c *Client) GetInvoices(ctx context.Context, invoiceIDs []int64) ([]Invoice, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(invoiceIDs))
	for _, id := range invoiceIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	params := url.Values{}
	params.Set("invoice_ids", strings.Join(ids, ","))
	var result getInvoicesResult
	if err := c.call(ctx, "getInvoices", params, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

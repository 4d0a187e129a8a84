package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sitsofe/pos-terminal/auth"
	"github.com/sitsofe/pos-terminal/models"
)

const (
	productsPath  = "products/subsidiary_products"
	customersPath = "customers"
	salesPath     = "sales"

	maxErrorBody = 512
)

// SessionSource supplies the ambient identity for each call.
type SessionSource interface {
	Current() (auth.Session, bool)
}

// Client talks to the pharmacy backend. Every call is independent and stateless apart
// from the session it reads at call time.
type Client struct {
	base    *url.URL
	http    *http.Client
	session SessionSource
	log     *logrus.Entry
}

// NewClient builds a Client for baseURL. A trailing slash is added so relative endpoint
// paths resolve under it.
func NewClient(baseURL string, timeout time.Duration, session SessionSource, log *logrus.Entry) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid API base URL")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		session: session,
		log:     log,
	}, nil
}

// FetchAllProducts returns the full catalog for the session's tenant/subsidiary.
func (c *Client) FetchAllProducts(ctx context.Context) ([]RemoteProduct, error) {
	var out []RemoteProduct
	if err := c.do(ctx, "fetch products", http.MethodGet, productsPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCustomers returns the customer directory.
func (c *Client) FetchCustomers(ctx context.Context) ([]RemoteCustomer, error) {
	var out []RemoteCustomer
	if err := c.do(ctx, "fetch customers", http.MethodGet, customersPath, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type saleItemBody struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	Name      string      `json:"name"`
}

type saleBody struct {
	RequestID     string         `json:"request_id"`
	CustomerPhone *string        `json:"customer_phone"`
	CustomerType  string         `json:"customer_type"`
	PaymentMethod string         `json:"payment_method"`
	Items         []saleItemBody `json:"items"`
	Condition     *string        `json:"condition,omitempty"`
}

// SubmitSale creates a sale. The request id doubles as the Idempotency-Key header.
func (c *Client) SubmitSale(ctx context.Context, req models.SaleRequest) (models.SaleResult, error) {
	body := saleBody{
		RequestID:     req.RequestID,
		CustomerPhone: req.CustomerPhone,
		CustomerType:  string(req.CustomerType),
		PaymentMethod: req.PaymentMethod,
		Items:         make([]saleItemBody, 0, len(req.Items)),
		Condition:     req.Condition,
	}
	for _, l := range req.Items {
		body.Items = append(body.Items, saleItemBody{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     json.Number(l.UnitPrice.String()),
			Name:      l.Name,
		})
	}

	headers := map[string]string{}
	if req.RequestID != "" {
		headers["Idempotency-Key"] = req.RequestID
	}

	var res models.SaleResult
	if err := c.do(ctx, "submit sale", http.MethodPost, salesPath, headers, body, &res); err != nil {
		return models.SaleResult{}, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, headers map[string]string, in, out interface{}) error {
	s, ok := c.session.Current()
	if !ok || s.Token == "" {
		return ErrNoSession
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if s.TenantID != "" {
		req.Header.Set("X-Tenant-Id", s.TenantID)
	}
	if s.SubsidiaryID != "" {
		req.Header.Set("X-Subsidiary-Id", s.SubsidiaryID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: errors.Wrap(err, "failed to reach backend")}
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(started).String(),
	}).Debug("backend call")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, StatusCode: 0, Err: errors.Wrap(err, "read response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &NetworkError{Op: op, StatusCode: resp.StatusCode, Body: snippet}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &NetworkError{Op: op, Err: errors.Wrap(err, "failed to parse response")}
	}
	return nil
}

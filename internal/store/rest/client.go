package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"storeconsole/internal/domain"
	"storeconsole/internal/store"
)

const defaultRole = "operator"

// ErrUpstream is returned for upstream failures that have no more specific
// store error.
var ErrUpstream = errors.New("upstream error")

// Client talks to the upstream store service over its JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type productsEnvelope struct {
	Products   []domain.Product `json:"products"`
	TotalCount int              `json:"totalCount"`
}

type ordersEnvelope struct {
	Orders []domain.Order `json:"orders"`
}

type authRequest struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

type authResponse struct {
	User string `json:"user"`
	Role string `json:"role"`
}

func (c *Client) ListProducts(ctx context.Context, page int, nPerPage int) (domain.ProductPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("nPerPage", strconv.Itoa(nPerPage))

	var out productsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/products?"+q.Encode(), nil, &out); err != nil {
		return domain.ProductPage{}, errors.Wrapf(err, "list products page %d", page)
	}
	return domain.ProductPage{Products: nonNilProducts(out.Products), TotalCount: out.TotalCount}, nil
}

func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("query", query)

	var out productsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/products/search?"+q.Encode(), nil, &out); err != nil {
		return nil, errors.Wrapf(err, "search products %q", query)
	}
	return nonNilProducts(out.Products), nil
}

func (c *Client) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	workers := []domain.Worker{}
	if err := c.do(ctx, http.MethodGet, "/api/workers", nil, &workers); err != nil {
		return nil, errors.Wrap(err, "list workers")
	}
	return workers, nil
}

func (c *Client) ListClientOrders(ctx context.Context, client string, nPerPage int) ([]domain.Order, error) {
	path := fmt.Sprintf("/api/clients/%s/orders?nPerPage=%d", url.PathEscape(client), nPerPage)

	var out ordersEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, errors.Wrapf(err, "list orders of %q", client)
	}
	if out.Orders == nil {
		out.Orders = []domain.Order{}
	}
	return out.Orders, nil
}

func (c *Client) ListOrders(ctx context.Context, page int, daily bool) (domain.OrderPage, error) {
	path := "/api/orders"
	if daily {
		path = "/api/orders/daily"
	}
	path += "?page=" + strconv.Itoa(page)

	var out domain.OrderPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return domain.OrderPage{}, errors.Wrapf(err, "list orders page %d", page)
	}
	if out.Orders == nil {
		out.Orders = []domain.Order{}
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, client string, req domain.OrderCreateRequest) (*domain.Order, error) {
	var order domain.Order
	path := fmt.Sprintf("/api/clients/%s/orders", url.PathEscape(client))
	if err := c.do(ctx, http.MethodPost, path, req, &order); err != nil {
		return nil, errors.Wrapf(err, "create order for %q", client)
	}
	return &order, nil
}

func (c *Client) CreateDebt(ctx context.Context, client string, req domain.DebtCreateRequest) (*domain.Debt, error) {
	var debt domain.Debt
	path := fmt.Sprintf("/api/clients/%s/debts", url.PathEscape(client))
	if err := c.do(ctx, http.MethodPost, path, req, &debt); err != nil {
		return nil, errors.Wrapf(err, "create debt for %q", client)
	}
	if debt.Client == "" {
		debt.Client = client
	}
	return &debt, nil
}

func (c *Client) SetOrderDeliveredBy(ctx context.Context, orderID string, worker string) error {
	path := fmt.Sprintf("/api/orders/%s/deliveredBy", url.PathEscape(orderID))
	return errors.Wrapf(c.do(ctx, http.MethodPut, path, domain.DeliveredByRequest{DeliveredBy: worker}, nil), "set order %s delivered by", orderID)
}

func (c *Client) SetOrderState(ctx context.Context, orderID string, state string) error {
	path := fmt.Sprintf("/api/orders/%s/state", url.PathEscape(orderID))
	return errors.Wrapf(c.do(ctx, http.MethodPut, path, domain.StateRequest{State: state}, nil), "set order %s state", orderID)
}

func (c *Client) SetDebtState(ctx context.Context, client string, debtID string, state string) error {
	path := fmt.Sprintf("/api/clients/%s/debts/%s/state", url.PathEscape(client), url.PathEscape(debtID))
	return errors.Wrapf(c.do(ctx, http.MethodPut, path, domain.StateRequest{State: state}, nil), "set debt %s state", debtID)
}

func (c *Client) CreateDiscount(ctx context.Context, productID string, req domain.DiscountCreateRequest) (*domain.Discount, error) {
	var discount domain.Discount
	path := fmt.Sprintf("/api/products/%s/discounts", url.PathEscape(productID))
	if err := c.do(ctx, http.MethodPost, path, req, &discount); err != nil {
		return nil, errors.Wrapf(err, "create discount on %s", productID)
	}
	if discount.ProductID == "" {
		discount.ProductID = productID
	}
	return &discount, nil
}

func (c *Client) DeleteDiscount(ctx context.Context, productID string, discountID string) error {
	path := fmt.Sprintf("/api/products/%s/discounts/%s", url.PathEscape(productID), url.PathEscape(discountID))
	return errors.Wrapf(c.do(ctx, http.MethodDelete, path, nil, nil), "delete discount %s", discountID)
}

// Authenticate posts the credentials to /api/auth. The upstream answers 200
// with an empty user on bad credentials.
func (c *Client) Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth", authRequest{User: username, Pass: password}, &out)
	if err != nil {
		if errors.Is(err, store.ErrInvalidLogin) {
			return domain.UserAccount{}, store.ErrInvalidLogin
		}
		return domain.UserAccount{}, errors.Wrap(err, "authenticate")
	}
	if out.User == "" {
		return domain.UserAccount{}, store.ErrInvalidLogin
	}
	role := out.Role
	if role == "" {
		role = defaultRole
	}
	return domain.UserAccount{Username: out.User, Role: role, Active: true}, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(statusError(resp.StatusCode), "%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return store.ErrInvalidRequest
	case http.StatusConflict:
		return store.ErrInsufficientStock
	case http.StatusUnauthorized, http.StatusForbidden:
		return store.ErrInvalidLogin
	default:
		return ErrUpstream
	}
}

func nonNilProducts(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}

package domain

import "time"

// Product is a catalog entry as served by the store backend. Remaining is
// the console-side reservation view and is never sent back.
type Product struct {
	ID        string     `json:"_id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Stock     int        `json:"stock"`
	Discounts []Discount `json:"discounts"`
	Remaining int        `json:"qty"`
}

// Discount is a day-of-week price reduction. DiscountDay follows
// time.Weekday numbering (Sunday = 0).
type Discount struct {
	ID              string  `json:"_id"`
	ProductID       string  `json:"productId,omitempty"`
	DiscountDay     int     `json:"discountDay"`
	Discount        float64 `json:"discount"`
	DiscountedPrice float64 `json:"discountedPrice"`
}

type DiscountCreateRequest struct {
	DiscountDay     int     `json:"discountDay"`
	Discount        float64 `json:"discount"`
	DiscountedPrice float64 `json:"discountedPrice"`
}

// LineItem is shared by order and debt drafts; Name is the key.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Qty      int     `json:"qty"`
	SubTotal float64 `json:"subTotal"`
}

type ProductPage struct {
	Products   []Product `json:"products"`
	TotalCount int       `json:"totalCount"`
}

type Worker struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	CEP    string `json:"cep"`
}

type Client struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf,omitempty"`
	Birthday  string    `json:"birthday,omitempty"`
	Phones    []string  `json:"phones,omitempty"`
	Addresses []Address `json:"addresses,omitempty"`
}

type OrderClient struct {
	Name string `json:"name"`
}

type Order struct {
	ID          string      `json:"_id"`
	By          OrderClient `json:"by"`
	Items       []LineItem  `json:"items"`
	ItemsCount  int         `json:"itemsCount"`
	Anotations  []string    `json:"anotations"`
	DeliveredBy string      `json:"deliveredBy"`
	Discount    float64     `json:"discount"`
	Total       float64     `json:"total"`
	State       string      `json:"state"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	NPerPage   int     `json:"nPerPage"`
	TotalCount int     `json:"totalCount"`
}

// OrderCreateRequest is the body posted to /api/clients/{client}/orders.
type OrderCreateRequest struct {
	Items       []LineItem `json:"items"`
	Anotations  []string   `json:"anotations"`
	DeliveredBy string     `json:"deliveredBy"`
	Discount    float64    `json:"discount"`
	Total       float64    `json:"total"`
}

type Debt struct {
	ID        string     `json:"_id"`
	Client    string     `json:"client,omitempty"`
	Items     []LineItem `json:"items"`
	Value     float64    `json:"value"`
	Paid      float64    `json:"paid"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
}

// DebtCreateRequest is the body posted to /api/clients/{client}/debts.
type DebtCreateRequest struct {
	Items []LineItem `json:"items"`
	Value float64    `json:"value"`
	Paid  float64    `json:"paid"`
}

type DeliveredByRequest struct {
	DeliveredBy string `json:"deliveredBy"`
}

type StateRequest struct {
	State string `json:"state"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username  string
	Role      string
	SessionID string
}

// UserAccount is an internal persistence model for operator credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const DeliveredByNone = "None"

const (
	OrderStateRegistered = "Registrado"
	OrderStateDelivered  = "Entregue"
)

const (
	DebtStateRegistered = "Registado"
	DebtStatePaid       = "Pago"
)

func IsOrderState(state string) bool {
	return state == OrderStateRegistered || state == OrderStateDelivered
}

func IsDebtState(state string) bool {
	return state == DebtStateRegistered || state == DebtStatePaid
}

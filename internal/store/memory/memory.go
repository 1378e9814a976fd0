package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storeconsole/internal/domain"
	"storeconsole/internal/store"
	"storeconsole/internal/xid"
)

// OrdersPerPage is the fixed page size of the order history listing.
const OrdersPerPage = 10

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productByName   map[string]string
	workers         []domain.Worker
	clients         map[string]domain.Client
	orders          []domain.Order
	debts           []domain.Debt
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

// seedUsers builds the operator accounts for dev/demo mode. Passwords come
// from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD; when unset the dev
// defaults are used with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "p-arroz", Name: "Arroz 5kg", Price: 24.9, Stock: 40, Discounts: []domain.Discount{
			{ID: "d-arroz-qua", DiscountDay: int(time.Wednesday), Discount: 10, DiscountedPrice: 22.41},
		}},
		{ID: "p-feijao", Name: "Feijao 1kg", Price: 8.5, Stock: 60},
		{ID: "p-oleo", Name: "Oleo de Soja", Price: 7.2, Stock: 35, Discounts: []domain.Discount{
			{ID: "d-oleo-sab", DiscountDay: int(time.Saturday), Discount: 5, DiscountedPrice: 6.84},
		}},
		{ID: "p-cafe", Name: "Cafe 500g", Price: 16.9, Stock: 25},
		{ID: "p-acucar", Name: "Acucar 1kg", Price: 4.8, Stock: 50},
		{ID: "p-leite", Name: "Leite 1L", Price: 5.4, Stock: 80, Discounts: []domain.Discount{
			{ID: "d-leite-seg", DiscountDay: int(time.Monday), Discount: 10, DiscountedPrice: 4.86},
		}},
		{ID: "p-macarrao", Name: "Macarrao 500g", Price: 4.3, Stock: 45},
		{ID: "p-sabonete", Name: "Sabonete", Price: 2.5, Stock: 90},
		{ID: "p-detergente", Name: "Detergente", Price: 2.9, Stock: 0},
		{ID: "p-gas", Name: "Gas de Cozinha 13kg", Price: 110, Stock: 12},
	}

	productMap := make(map[string]domain.Product, len(products))
	byName := make(map[string]string, len(products))
	for _, p := range products {
		for i := range p.Discounts {
			p.Discounts[i].ProductID = p.ID
		}
		productMap[p.ID] = p
		byName[p.Name] = p.ID
	}

	clients := map[string]domain.Client{}
	for _, c := range []domain.Client{
		{ID: "c-ana", Name: "Ana Souza", Phones: []string{"(11) 98888-1010"}, Addresses: []domain.Address{{Street: "Rua das Flores 12", City: "Sao Paulo", State: "SP", CEP: "01000-000"}}},
		{ID: "c-carlos", Name: "Carlos Lima", Phones: []string{"(11) 97777-2020"}},
	} {
		clients[c.Name] = c
	}

	created := time.Now().UTC().Add(-72 * time.Hour)
	orders := []domain.Order{
		{
			ID:          "o-seed-1",
			By:          domain.OrderClient{Name: "Ana Souza"},
			Items:       []domain.LineItem{{Name: "Arroz 5kg", Price: 24.9, Qty: 1, SubTotal: 24.9}, {Name: "Feijao 1kg", Price: 8.5, Qty: 2, SubTotal: 17}},
			ItemsCount:  2,
			Anotations:  []string{},
			DeliveredBy: "Joao",
			Total:       41.9,
			State:       domain.OrderStateDelivered,
			CreatedAt:   created,
		},
	}

	return &Store{
		products:        productMap,
		productByName:   byName,
		workers:         []domain.Worker{{ID: "w-joao", Name: "Joao"}, {ID: "w-maria", Name: "Maria"}},
		clients:         clients,
		orders:          orders,
		debts:           []domain.Debt{},
		usersByUsername: seedUsers(),
		now:             time.Now,
	}
}

func (s *Store) ListProducts(_ context.Context, page int, nPerPage int) (domain.ProductPage, error) {
	if page < 1 || nPerPage < 1 {
		return domain.ProductPage{}, errors.Wrapf(store.ErrInvalidRequest, "page %d of size %d", page, nPerPage)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedProducts()
	start := (page - 1) * nPerPage
	if start > len(all) {
		start = len(all)
	}
	end := min(start+nPerPage, len(all))
	return domain.ProductPage{Products: all[start:end], TotalCount: len(all)}, nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Product, 0)
	for _, p := range s.sortedProducts() {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (s *Store) ListWorkers(_ context.Context) ([]domain.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.workers), nil
}

func (s *Store) ListClientOrders(_ context.Context, client string, nPerPage int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.clients[client]; !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "client %q", client)
	}

	orders := make([]domain.Order, 0)
	for _, o := range s.newestOrders() {
		if o.By.Name != client {
			continue
		}
		orders = append(orders, o)
		if nPerPage > 0 && len(orders) == nPerPage {
			break
		}
	}
	return orders, nil
}

// ListOrders pages the order history newest first. With daily set only
// orders created on the current calendar day are listed.
func (s *Store) ListOrders(_ context.Context, page int, daily bool) (domain.OrderPage, error) {
	if page < 1 {
		return domain.OrderPage{}, errors.Wrapf(store.ErrInvalidRequest, "page %d", page)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	filtered := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.newestOrders() {
		if daily && !sameDay(o.CreatedAt, now) {
			continue
		}
		filtered = append(filtered, o)
	}

	start := min((page-1)*OrdersPerPage, len(filtered))
	end := min(start+OrdersPerPage, len(filtered))
	return domain.OrderPage{Orders: filtered[start:end], NPerPage: OrdersPerPage, TotalCount: len(filtered)}, nil
}

func (s *Store) CreateOrder(_ context.Context, client string, req domain.OrderCreateRequest) (*domain.Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.Total < 0 || req.Discount < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "negative total or discount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "client %q", client)
	}
	deliveredBy := req.DeliveredBy
	if deliveredBy == "" {
		deliveredBy = domain.DeliveredByNone
	}
	if !s.isWorker(deliveredBy) {
		return nil, errors.Wrapf(store.ErrInvalidRequest, "unknown worker %q", deliveredBy)
	}

	// Check every line before touching stock so a rejected order leaves
	// the inventory as it was.
	for _, item := range req.Items {
		id, ok := s.productByName[item.Name]
		if !ok {
			return nil, errors.Wrapf(store.ErrNotFound, "product %q", item.Name)
		}
		if s.products[id].Stock < item.Qty {
			return nil, errors.Wrapf(store.ErrInsufficientStock, "product %q has %d, requested %d", item.Name, s.products[id].Stock, item.Qty)
		}
	}
	for _, item := range req.Items {
		id := s.productByName[item.Name]
		p := s.products[id]
		p.Stock -= item.Qty
		s.products[id] = p
	}

	anotations := req.Anotations
	if anotations == nil {
		anotations = []string{}
	}
	order := domain.Order{
		ID:          xid.New("ord"),
		By:          domain.OrderClient{Name: client},
		Items:       slices.Clone(req.Items),
		ItemsCount:  len(req.Items),
		Anotations:  slices.Clone(anotations),
		DeliveredBy: deliveredBy,
		Discount:    req.Discount,
		Total:       req.Total,
		State:       domain.OrderStateRegistered,
		CreatedAt:   s.now().UTC(),
	}
	s.orders = append(s.orders, order)
	created := order
	return &created, nil
}

func (s *Store) CreateDebt(_ context.Context, client string, req domain.DebtCreateRequest) (*domain.Debt, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.Paid < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "negative paid amount")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "client %q", client)
	}

	debt := domain.Debt{
		ID:        xid.New("dbt"),
		Client:    client,
		Items:     slices.Clone(req.Items),
		Value:     req.Value,
		Paid:      req.Paid,
		State:     domain.DebtStateRegistered,
		CreatedAt: s.now().UTC(),
	}
	s.debts = append(s.debts, debt)
	created := debt
	return &created, nil
}

func (s *Store) SetOrderDeliveredBy(_ context.Context, orderID string, worker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isWorker(worker) {
		return errors.Wrapf(store.ErrInvalidRequest, "unknown worker %q", worker)
	}
	idx := s.orderIndex(orderID)
	if idx < 0 {
		return errors.Wrapf(store.ErrNotFound, "order %s", orderID)
	}
	s.orders[idx].DeliveredBy = worker
	return nil
}

func (s *Store) SetOrderState(_ context.Context, orderID string, state string) error {
	if !domain.IsOrderState(state) {
		return errors.Wrapf(store.ErrInvalidRequest, "order state %q", state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.orderIndex(orderID)
	if idx < 0 {
		return errors.Wrapf(store.ErrNotFound, "order %s", orderID)
	}
	s.orders[idx].State = state
	return nil
}

func (s *Store) SetDebtState(_ context.Context, client string, debtID string, state string) error {
	if !domain.IsDebtState(state) {
		return errors.Wrapf(store.ErrInvalidRequest, "debt state %q", state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.debts {
		if s.debts[i].ID == debtID && s.debts[i].Client == client {
			s.debts[i].State = state
			return nil
		}
	}
	return errors.Wrapf(store.ErrNotFound, "debt %s of %q", debtID, client)
}

func (s *Store) CreateDiscount(_ context.Context, productID string, req domain.DiscountCreateRequest) (*domain.Discount, error) {
	if req.DiscountDay < 0 || req.DiscountDay > 6 {
		return nil, errors.Wrapf(store.ErrInvalidRequest, "discount day %d", req.DiscountDay)
	}
	if req.Discount < 0 || req.Discount > 100 || req.DiscountedPrice < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "discount out of range")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "product %s", productID)
	}
	discount := domain.Discount{
		ID:              xid.New("dsc"),
		ProductID:       productID,
		DiscountDay:     req.DiscountDay,
		Discount:        req.Discount,
		DiscountedPrice: req.DiscountedPrice,
	}
	p.Discounts = append(slices.Clone(p.Discounts), discount)
	s.products[productID] = p
	return &discount, nil
}

func (s *Store) DeleteDiscount(_ context.Context, productID string, discountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return errors.Wrapf(store.ErrNotFound, "product %s", productID)
	}
	idx := slices.IndexFunc(p.Discounts, func(d domain.Discount) bool { return d.ID == discountID })
	if idx < 0 {
		return errors.Wrapf(store.ErrNotFound, "discount %s", discountID)
	}
	p.Discounts = slices.Delete(slices.Clone(p.Discounts), idx, idx+1)
	s.products[productID] = p
	return nil
}

func (s *Store) Authenticate(_ context.Context, username string, password string) (domain.UserAccount, error) {
	username = strings.TrimSpace(username)

	s.mu.RLock()
	user, ok := s.usersByUsername[username]
	s.mu.RUnlock()

	if !ok || !user.Active {
		return domain.UserAccount{}, store.ErrInvalidLogin
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return domain.UserAccount{}, store.ErrInvalidLogin
	}
	return user, nil
}

// AddClient registers a client so orders and debts can be placed for it.
func (s *Store) AddClient(c domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = xid.New("cli")
	}
	s.clients[c.Name] = c
}

// sortedProducts returns copies ordered by name. Caller holds mu.
func (s *Store) sortedProducts() []domain.Product {
	all := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		p.Discounts = slices.Clone(p.Discounts)
		all = append(all, p)
	}
	slices.SortFunc(all, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return all
}

// newestOrders returns copies ordered newest first. Caller holds mu.
func (s *Store) newestOrders() []domain.Order {
	out := make([]domain.Order, len(s.orders))
	copy(out, s.orders)
	slices.SortStableFunc(out, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *Store) orderIndex(id string) int {
	return slices.IndexFunc(s.orders, func(o domain.Order) bool { return o.ID == id })
}

func (s *Store) isWorker(name string) bool {
	if name == domain.DeliveredByNone {
		return true
	}
	return slices.ContainsFunc(s.workers, func(w domain.Worker) bool { return w.Name == name })
}

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return errors.Wrap(store.ErrInvalidRequest, "no items")
	}
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" || item.Qty < 1 || item.Price < 0 {
			return errors.Wrapf(store.ErrInvalidRequest, "line %q", item.Name)
		}
	}
	return nil
}

func sameDay(a time.Time, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"storeconsole/internal/domain"
	"storeconsole/internal/store"
	"storeconsole/internal/xid"
)

// OrdersPerPage is the fixed page size of the order history listing.
const OrdersPerPage = 10

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

func (s *Store) ListProducts(ctx context.Context, page int, nPerPage int) (domain.ProductPage, error) {
	if page < 1 || nPerPage < 1 {
		return domain.ProductPage{}, errors.Wrapf(store.ErrInvalidRequest, "page %d of size %d", page, nPerPage)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return domain.ProductPage{}, errors.Wrap(err, "count products")
	}

	products, err := s.queryProducts(ctx, `
		SELECT id, name, price, stock
		FROM products
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, nPerPage, (page-1)*nPerPage)
	if err != nil {
		return domain.ProductPage{}, err
	}
	return domain.ProductPage{Products: products, TotalCount: total}, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return s.queryProducts(ctx, `
		SELECT id, name, price, stock
		FROM products
		WHERE name ILIKE $1
		ORDER BY name
	`, pattern)
}

func (s *Store) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM workers ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list workers")
	}
	defer rows.Close()

	workers := make([]domain.Worker, 0, 8)
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (s *Store) ListClientOrders(ctx context.Context, client string, nPerPage int) ([]domain.Order, error) {
	if err := ensureClient(ctx, s.db, client); err != nil {
		return nil, err
	}
	if nPerPage < 1 {
		nPerPage = 30
	}
	return s.queryOrders(ctx, `
		SELECT id, client_name, anotations, delivered_by, discount, total, state, created_at
		FROM orders
		WHERE client_name = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, client, nPerPage)
}

func (s *Store) ListOrders(ctx context.Context, page int, daily bool) (domain.OrderPage, error) {
	if page < 1 {
		return domain.OrderPage{}, errors.Wrapf(store.ErrInvalidRequest, "page %d", page)
	}

	filter := "true"
	if daily {
		filter = "created_at >= date_trunc('day', now())"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM orders WHERE `+filter).Scan(&total); err != nil {
		return domain.OrderPage{}, errors.Wrap(err, "count orders")
	}

	orders, err := s.queryOrders(ctx, `
		SELECT id, client_name, anotations, delivered_by, discount, total, state, created_at
		FROM orders
		WHERE `+filter+`
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, OrdersPerPage, (page-1)*OrdersPerPage)
	if err != nil {
		return domain.OrderPage{}, err
	}
	return domain.OrderPage{Orders: orders, NPerPage: OrdersPerPage, TotalCount: total}, nil
}

// CreateOrder records the order and takes its lines out of stock in one
// serializable transaction.
func (s *Store) CreateOrder(ctx context.Context, client string, req domain.OrderCreateRequest) (*domain.Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.Total < 0 || req.Discount < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "negative total or discount")
	}
	deliveredBy := req.DeliveredBy
	if deliveredBy == "" {
		deliveredBy = domain.DeliveredByNone
	}
	anotations := req.Anotations
	if anotations == nil {
		anotations = []string{}
	}
	anotationsJSON, err := json.Marshal(anotations)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureClient(ctx, tx, client); err != nil {
		return nil, err
	}
	if err := ensureWorker(ctx, tx, deliveredBy); err != nil {
		return nil, err
	}

	for _, item := range req.Items {
		var stock int
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE name = $1 FOR UPDATE`, item.Name).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(store.ErrNotFound, "product %q", item.Name)
		}
		if err != nil {
			return nil, err
		}
		if stock < item.Qty {
			return nil, errors.Wrapf(store.ErrInsufficientStock, "product %q has %d, requested %d", item.Name, stock, item.Qty)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - $1 WHERE name = $2`, item.Qty, item.Name); err != nil {
			return nil, err
		}
	}

	order := domain.Order{
		ID:          xid.New("ord"),
		By:          domain.OrderClient{Name: client},
		Items:       append([]domain.LineItem(nil), req.Items...),
		ItemsCount:  len(req.Items),
		Anotations:  anotations,
		DeliveredBy: deliveredBy,
		Discount:    req.Discount,
		Total:       req.Total,
		State:       domain.OrderStateRegistered,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, client_name, anotations, delivered_by, discount, total, state, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING created_at
	`, order.ID, client, string(anotationsJSON), deliveredBy, req.Discount, req.Total, order.State).Scan(&order.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}
	if err := insertItems(ctx, tx, "order_items", "order_id", order.ID, req.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) CreateDebt(ctx context.Context, client string, req domain.DebtCreateRequest) (*domain.Debt, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if req.Paid < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "negative paid amount")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureClient(ctx, tx, client); err != nil {
		return nil, err
	}

	debt := domain.Debt{
		ID:     xid.New("dbt"),
		Client: client,
		Items:  append([]domain.LineItem(nil), req.Items...),
		Value:  req.Value,
		Paid:   req.Paid,
		State:  domain.DebtStateRegistered,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO debts (id, client_name, value, paid, state, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING created_at
	`, debt.ID, client, req.Value, req.Paid, debt.State).Scan(&debt.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert debt")
	}
	if err := insertItems(ctx, tx, "debt_items", "debt_id", debt.ID, req.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &debt, nil
}

func (s *Store) SetOrderDeliveredBy(ctx context.Context, orderID string, worker string) error {
	if err := ensureWorker(ctx, s.db, worker); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET delivered_by = $1 WHERE id = $2`, worker, orderID)
	return expectOneRow(res, err, "order "+orderID)
}

func (s *Store) SetOrderState(ctx context.Context, orderID string, state string) error {
	if !domain.IsOrderState(state) {
		return errors.Wrapf(store.ErrInvalidRequest, "order state %q", state)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET state = $1 WHERE id = $2`, state, orderID)
	return expectOneRow(res, err, "order "+orderID)
}

func (s *Store) SetDebtState(ctx context.Context, client string, debtID string, state string) error {
	if !domain.IsDebtState(state) {
		return errors.Wrapf(store.ErrInvalidRequest, "debt state %q", state)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE debts SET state = $1 WHERE id = $2 AND client_name = $3`, state, debtID, client)
	return expectOneRow(res, err, "debt "+debtID)
}

func (s *Store) CreateDiscount(ctx context.Context, productID string, req domain.DiscountCreateRequest) (*domain.Discount, error) {
	if req.DiscountDay < 0 || req.DiscountDay > 6 {
		return nil, errors.Wrapf(store.ErrInvalidRequest, "discount day %d", req.DiscountDay)
	}
	if req.Discount < 0 || req.Discount > 100 || req.DiscountedPrice < 0 {
		return nil, errors.Wrap(store.ErrInvalidRequest, "discount out of range")
	}

	discount := domain.Discount{
		ID:              xid.New("dsc"),
		ProductID:       productID,
		DiscountDay:     req.DiscountDay,
		Discount:        req.Discount,
		DiscountedPrice: req.DiscountedPrice,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_discounts (id, product_id, discount_day, discount, discounted_price)
		VALUES ($1,$2,$3,$4,$5)
	`, discount.ID, productID, req.DiscountDay, req.Discount, req.DiscountedPrice)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, errors.Wrapf(store.ErrNotFound, "product %s", productID)
		}
		if isUniqueViolation(err) {
			return nil, errors.Wrap(store.ErrInvalidRequest, "duplicate discount id")
		}
		return nil, errors.Wrap(err, "insert discount")
	}
	return &discount, nil
}

func (s *Store) DeleteDiscount(ctx context.Context, productID string, discountID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_discounts WHERE id = $1 AND product_id = $2`, discountID, productID)
	return expectOneRow(res, err, "discount "+discountID)
}

func (s *Store) Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		WHERE username = $1
	`, strings.TrimSpace(username)).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserAccount{}, store.ErrInvalidLogin
	}
	if err != nil {
		return domain.UserAccount{}, err
	}
	if !user.Active || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return domain.UserAccount{}, store.ErrInvalidLogin
	}
	return user, nil
}

// UpsertUser stores an operator account with a bcrypt hash of password.
func (s *Store) UpsertUser(ctx context.Context, username string, password string, role string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,true,now())
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, active = true
	`, username, string(hash), role)
	return errors.Wrap(err, "upsert user")
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func ensureClient(ctx context.Context, q queryer, client string) error {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM clients WHERE name = $1`, client).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(store.ErrNotFound, "client %q", client)
	}
	return err
}

func ensureWorker(ctx context.Context, q queryer, worker string) error {
	if worker == domain.DeliveredByNone {
		return nil
	}
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM workers WHERE name = $1`, worker).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(store.ErrInvalidRequest, "unknown worker %q", worker)
	}
	return err
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		p.Discounts = []domain.Discount{}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return products, nil
	}

	discounts, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, discount_day, discount, discounted_price
		FROM product_discounts
		WHERE product_id = ANY($1)
		ORDER BY seq
	`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query discounts")
	}
	defer discounts.Close()

	index := make(map[string]int, len(products))
	for i, p := range products {
		index[p.ID] = i
	}
	for discounts.Next() {
		var d domain.Discount
		if err := discounts.Scan(&d.ID, &d.ProductID, &d.DiscountDay, &d.Discount, &d.DiscountedPrice); err != nil {
			return nil, err
		}
		i := index[d.ProductID]
		products[i].Discounts = append(products[i].Discounts, d)
	}
	return products, discounts.Err()
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, OrdersPerPage)
	for rows.Next() {
		var (
			o             domain.Order
			anotationsRaw []byte
		)
		if err := rows.Scan(&o.ID, &o.By.Name, &anotationsRaw, &o.DeliveredBy, &o.Discount, &o.Total, &o.State, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Anotations = []string{}
		if len(anotationsRaw) > 0 {
			if err := json.Unmarshal(anotationsRaw, &o.Anotations); err != nil {
				return nil, err
			}
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.queryItems(ctx, `SELECT name, price, qty, sub_total FROM order_items WHERE order_id = $1 ORDER BY position`, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
		orders[i].ItemsCount = len(items)
	}
	return orders, nil
}

func (s *Store) queryItems(ctx context.Context, query string, id string) ([]domain.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "query items")
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Qty, &item.SubTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, table string, fk string, id string, items []domain.LineItem) error {
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (`+fk+`, position, name, price, qty, sub_total)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, id, i, item.Name, item.Price, item.Qty, item.SubTotal)
		if err != nil {
			return errors.Wrapf(err, "insert %s", table)
		}
	}
	return nil
}

func expectOneRow(res sql.Result, err error, what string) error {
	if err != nil {
		return errors.Wrapf(err, "update %s", what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(store.ErrNotFound, what)
	}
	return nil
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

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

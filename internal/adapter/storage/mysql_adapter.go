package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

//go:embed schema.sql
var schema string

// MySQLAdapter implements port.Database on MySQL. Reads outside Atomic run on
// the pool without row locks; inside Atomic, product, store and warehouse
// loads take SELECT ... FOR UPDATE locks held until commit.
type MySQLAdapter struct {
	db *sqlx.DB
	*mysqlRepository
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{
		db:              db,
		mysqlRepository: &mysqlRepository{ext: db},
	}
}

// Migrate creates the tables if they do not exist.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Atomic(ctx context.Context, fn func(ctx context.Context, tx port.Repository) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &mysqlRepository{ext: tx, locking: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type mysqlRepository struct {
	ext     sqlx.ExtContext
	locking bool
}

type allocationRow struct {
	ContainerKind string `db:"container_kind"`
	ContainerKey  string `db:"container_key"`
	ProductID     int64  `db:"product_id"`
	ProductName   string `db:"product_name"`
	Quantity      int    `db:"quantity"`
}

func (r allocationRow) allocation() domain.Allocation {
	return domain.Allocation{
		Container: domain.ContainerRef{Kind: domain.ContainerKind(r.ContainerKind), Key: r.ContainerKey},
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
	}
}

const (
	productColumns   = `id, name, description, price, available_stock, created_at, updated_at`
	storeColumns     = `id, name, occupancy, created_at, updated_at`
	warehouseColumns = `id, business_unit_code, location, capacity, occupancy, created_at, archived_at, version`
)

func (r *mysqlRepository) forUpdate(query string) string {
	if r.locking {
		return query + ` FOR UPDATE`
	}
	return query
}

// get runs a single-row query and maps sql.ErrNoRows to a nil result.
func get[T any](ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*T, error) {
	var dest T
	err := sqlx.GetContext(ctx, q, &dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dest, nil
}

// errDuplicateEntry is the server error number for a unique key violation.
const errDuplicateEntry = 1062

// duplicate translates a unique key violation into the given kind. A
// concurrent writer can pass the service's existence check before committing.
func duplicate(err error, kind error, format string, args ...any) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
		return domain.Errorf(kind, format, args...)
	}
	return err
}

func insertID(result sql.Result) (int64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (r *mysqlRepository) InsertProduct(ctx context.Context, product *domain.Product) error {
	result, err := r.ext.ExecContext(ctx, `
		INSERT INTO products (name, description, price, available_stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		product.Name, product.Description, product.Price, product.AvailableStock,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		err = duplicate(err, domain.ErrDuplicateName, "product with name %q already exists", product.Name)
		return fmt.Errorf("insert product: %w", err)
	}
	product.ID, err = insertID(result)
	return err
}

func (r *mysqlRepository) ProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	return get[domain.Product](ctx, r.ext,
		r.forUpdate(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
}

func (r *mysqlRepository) ProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return get[domain.Product](ctx, r.ext,
		`SELECT `+productColumns+` FROM products WHERE name = ?`, name)
}

func (r *mysqlRepository) UpdateProduct(ctx context.Context, product domain.Product) error {
	_, err := r.ext.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, available_stock = ?, updated_at = ?
		WHERE id = ?`,
		product.Name, product.Description, product.Price, product.AvailableStock,
		product.UpdatedAt, product.ID,
	)
	if err != nil {
		err = duplicate(err, domain.ErrDuplicateName, "product with name %q already exists", product.Name)
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *mysqlRepository) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := r.ext.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (r *mysqlRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.ext, &products,
		`SELECT `+productColumns+` FROM products ORDER BY name, id`)
	return products, err
}

func (r *mysqlRepository) InsertStore(ctx context.Context, store *domain.Store) error {
	result, err := r.ext.ExecContext(ctx, `
		INSERT INTO stores (name, occupancy, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		store.Name, store.Occupancy, store.CreatedAt, store.UpdatedAt,
	)
	if err != nil {
		err = duplicate(err, domain.ErrDuplicateName, "store with name %q already exists", store.Name)
		return fmt.Errorf("insert store: %w", err)
	}
	store.ID, err = insertID(result)
	return err
}

func (r *mysqlRepository) StoreByID(ctx context.Context, id int64) (*domain.Store, error) {
	return get[domain.Store](ctx, r.ext,
		r.forUpdate(`SELECT `+storeColumns+` FROM stores WHERE id = ?`), id)
}

func (r *mysqlRepository) StoreByName(ctx context.Context, name string) (*domain.Store, error) {
	return get[domain.Store](ctx, r.ext,
		`SELECT `+storeColumns+` FROM stores WHERE name = ?`, name)
}

func (r *mysqlRepository) UpdateStore(ctx context.Context, store domain.Store) error {
	_, err := r.ext.ExecContext(ctx, `
		UPDATE stores SET name = ?, occupancy = ?, updated_at = ? WHERE id = ?`,
		store.Name, store.Occupancy, store.UpdatedAt, store.ID,
	)
	if err != nil {
		err = duplicate(err, domain.ErrDuplicateName, "store with name %q already exists", store.Name)
		return fmt.Errorf("update store: %w", err)
	}
	return nil
}

func (r *mysqlRepository) DeleteStore(ctx context.Context, id int64) error {
	if _, err := r.ext.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	return nil
}

func (r *mysqlRepository) ListStores(ctx context.Context) ([]domain.Store, error) {
	stores := []domain.Store{}
	err := sqlx.SelectContext(ctx, r.ext, &stores,
		`SELECT `+storeColumns+` FROM stores ORDER BY name, id`)
	return stores, err
}

func (r *mysqlRepository) InsertWarehouse(ctx context.Context, warehouse *domain.Warehouse) error {
	result, err := r.ext.ExecContext(ctx, `
		INSERT INTO warehouses (business_unit_code, location, capacity, occupancy, created_at, archived_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		warehouse.BusinessUnitCode, warehouse.Location, warehouse.Capacity, warehouse.Occupancy,
		warehouse.CreatedAt, warehouse.ArchivedAt, warehouse.Version,
	)
	if err != nil {
		err = duplicate(err, domain.ErrDuplicateCode,
			"warehouse with business unit code %q already exists", warehouse.BusinessUnitCode)
		return fmt.Errorf("insert warehouse: %w", err)
	}
	warehouse.ID, err = insertID(result)
	return err
}

func (r *mysqlRepository) WarehouseByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	return get[domain.Warehouse](ctx, r.ext,
		`SELECT `+warehouseColumns+` FROM warehouses WHERE business_unit_code = ?`, code)
}

func (r *mysqlRepository) LockWarehouse(ctx context.Context, code string) (*domain.Warehouse, error) {
	return get[domain.Warehouse](ctx, r.ext,
		r.forUpdate(`SELECT `+warehouseColumns+` FROM warehouses WHERE business_unit_code = ?`), code)
}

func (r *mysqlRepository) UpdateWarehouse(ctx context.Context, warehouse *domain.Warehouse) error {
	result, err := r.ext.ExecContext(ctx, `
		UPDATE warehouses
		SET location = ?, capacity = ?, occupancy = ?, archived_at = ?, version = version + 1
		WHERE business_unit_code = ? AND version = ?`,
		warehouse.Location, warehouse.Capacity, warehouse.Occupancy, warehouse.ArchivedAt,
		warehouse.BusinessUnitCode, warehouse.Version,
	)
	if err != nil {
		return fmt.Errorf("update warehouse: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		conflict := &domain.ConcurrentModificationError{
			BusinessUnitCode: warehouse.BusinessUnitCode,
			Expected:         warehouse.Version,
		}
		if current, err := r.WarehouseByCode(ctx, warehouse.BusinessUnitCode); err == nil && current != nil {
			conflict.Actual = current.Version
		}
		return conflict
	}

	warehouse.Version++
	return nil
}

func (r *mysqlRepository) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	warehouses := []domain.Warehouse{}
	err := sqlx.SelectContext(ctx, r.ext, &warehouses,
		`SELECT `+warehouseColumns+` FROM warehouses ORDER BY id`)
	return warehouses, err
}

func (r *mysqlRepository) SearchWarehouses(ctx context.Context, query domain.WarehouseQuery) ([]domain.Warehouse, error) {
	conditions := []string{"archived_at IS NULL"}
	args := []any{}

	if query.Location != nil {
		conditions = append(conditions, "location = ?")
		args = append(args, *query.Location)
	}
	if query.MinCapacity != nil {
		conditions = append(conditions, "capacity >= ?")
		args = append(args, *query.MinCapacity)
	}
	if query.MaxCapacity != nil {
		conditions = append(conditions, "capacity <= ?")
		args = append(args, *query.MaxCapacity)
	}

	column := "created_at"
	if query.SortBy == domain.SortByCapacity {
		column = "capacity"
	}
	direction := "ASC"
	if query.SortOrder == domain.SortDesc {
		direction = "DESC"
	}

	stmt := `SELECT ` + warehouseColumns + ` FROM warehouses WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT ? OFFSET ?", column, direction)
	args = append(args, query.PageSize, query.Offset())

	warehouses := []domain.Warehouse{}
	err := sqlx.SelectContext(ctx, r.ext, &warehouses, stmt, args...)
	return warehouses, err
}

func (r *mysqlRepository) FindAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) (*domain.Allocation, error) {
	row, err := get[allocationRow](ctx, r.ext, `
		SELECT container_kind, container_key, product_id, '' AS product_name, quantity
		FROM allocations
		WHERE container_kind = ? AND container_key = ? AND product_id = ?`,
		string(ref.Kind), ref.Key, productID,
	)
	if err != nil || row == nil {
		return nil, err
	}
	allocation := row.allocation()
	return &allocation, nil
}

func (r *mysqlRepository) SaveAllocation(ctx context.Context, allocation domain.Allocation) error {
	_, err := r.ext.ExecContext(ctx, `
		INSERT INTO allocations (container_kind, container_key, product_id, quantity)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		string(allocation.Container.Kind), allocation.Container.Key, allocation.ProductID, allocation.Quantity,
	)
	if err != nil {
		return fmt.Errorf("save allocation: %w", err)
	}
	return nil
}

func (r *mysqlRepository) DeleteAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) error {
	_, err := r.ext.ExecContext(ctx, `
		DELETE FROM allocations WHERE container_kind = ? AND container_key = ? AND product_id = ?`,
		string(ref.Kind), ref.Key, productID,
	)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return nil
}

func (r *mysqlRepository) AllocationsByContainer(ctx context.Context, ref domain.ContainerRef) ([]domain.AllocationView, error) {
	var rows []allocationRow
	err := sqlx.SelectContext(ctx, r.ext, &rows, `
		SELECT a.container_kind, a.container_key, a.product_id, p.name AS product_name, a.quantity
		FROM allocations a
		JOIN products p ON p.id = a.product_id
		WHERE a.container_kind = ? AND a.container_key = ?
		ORDER BY p.name, a.product_id`,
		string(ref.Kind), ref.Key,
	)
	if err != nil {
		return nil, err
	}

	views := make([]domain.AllocationView, 0, len(rows))
	for _, row := range rows {
		views = append(views, domain.NewAllocationView(row.allocation(), row.ProductName))
	}
	return views, nil
}

func (r *mysqlRepository) AllocationsByProduct(ctx context.Context, productID int64) ([]domain.Allocation, error) {
	var rows []allocationRow
	err := sqlx.SelectContext(ctx, r.ext, &rows, `
		SELECT container_kind, container_key, product_id, '' AS product_name, quantity
		FROM allocations WHERE product_id = ?
		ORDER BY container_kind, container_key`,
		productID,
	)
	if err != nil {
		return nil, err
	}

	allocations := make([]domain.Allocation, 0, len(rows))
	for _, row := range rows {
		allocations = append(allocations, row.allocation())
	}
	return allocations, nil
}

func (r *mysqlRepository) AllocationTotal(ctx context.Context, ref domain.ContainerRef) (int, int, error) {
	var totals struct {
		Total int `db:"total"`
		Count int `db:"count"`
	}
	err := sqlx.GetContext(ctx, r.ext, &totals, `
		SELECT COALESCE(SUM(quantity), 0) AS total, COUNT(*) AS count
		FROM allocations WHERE container_kind = ? AND container_key = ?`,
		string(ref.Kind), ref.Key,
	)
	if err != nil {
		return 0, 0, err
	}
	return totals.Total, totals.Count, nil
}

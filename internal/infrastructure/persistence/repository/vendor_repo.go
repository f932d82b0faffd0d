package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// VendorRepository implements port.VendorRepository
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) port.VendorRepository {
	return &VendorRepository{db: db, logger: logger}
}

const vendorColumns = `id, vendor_code, vendor_name, vendor_type, tax_id, address,
	contact_person, contact_email, contact_phone, payment_terms, order_currency, is_active, created_at`

func scanVendor(row interface{ Scan(...interface{}) error }) (*entity.Vendor, error) {
	var v entity.Vendor
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.Type, &v.TaxID, &v.Address,
		&v.ContactPerson, &v.ContactEmail, &v.ContactPhone, &v.PaymentTerms, &v.Currency, &v.Active, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VendorRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]*entity.Vendor, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list vendors", zap.Error(err))
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*entity.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// Create inserts a vendor; a duplicate code is a conflict
func (r *VendorRepository) Create(ctx context.Context, v *entity.Vendor) error {
	query := `
		INSERT INTO vendors (vendor_code, vendor_name, vendor_type, tax_id, address,
			contact_person, contact_email, contact_phone, payment_terms, order_currency, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		v.Code, v.Name, v.Type, v.TaxID, v.Address,
		v.ContactPerson, v.ContactEmail, v.ContactPhone, v.PaymentTerms, v.Currency,
		boolToInt(v.Active), v.CreatedAt.UTC())
	if err != nil {
		return insertError(r.logger, err, fmt.Sprintf("vendor code %s already exists", v.Code),
			zap.String("vendor_code", v.Code))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	return nil
}

// GetByCode retrieves a vendor by its code
func (r *VendorRepository) GetByCode(ctx context.Context, code string) (*entity.Vendor, error) {
	v, err := scanVendor(sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE vendor_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("vendor %s not found", code)
	}
	if err != nil {
		r.logger.Error("Failed to get vendor", zap.String("vendor_code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

// List returns vendors ordered by name
func (r *VendorRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Vendor, error) {
	return r.queryList(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE (? = 0 OR is_active = 1) ORDER BY vendor_name`,
		boolToInt(activeOnly))
}

// Search matches active vendors by code or name substring
func (r *VendorRepository) Search(ctx context.Context, query string, limit int) ([]*entity.Vendor, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"
	return r.queryList(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		WHERE is_active = 1 AND (vendor_code LIKE ? ESCAPE '\' OR vendor_name LIKE ? ESCAPE '\')
		ORDER BY vendor_name LIMIT ?`,
		pattern, pattern, limit)
}

// SetActive toggles a vendor's active flag
func (r *VendorRepository) SetActive(ctx context.Context, code string, active bool) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE vendors SET is_active = ? WHERE vendor_code = ?`, boolToInt(active), code)
	if err != nil {
		r.logger.Error("Failed to update vendor", zap.String("vendor_code", code), zap.Error(err))
		return fmt.Errorf("failed to update vendor: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("vendor %s not found", code)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

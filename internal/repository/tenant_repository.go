package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"fitdesk/internal/models"
)

type TenantRepository struct {
	db Querier
}

func NewTenantRepository(db Querier) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (models.Tenant, error) {
	const query = `SELECT id, subdomain, name, created_at FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *TenantRepository) FindBySubdomain(ctx context.Context, subdomain string) (models.Tenant, error) {
	const query = `SELECT id, subdomain, name, created_at FROM tenants WHERE subdomain = $1`
	return scanTenant(r.db.QueryRow(ctx, query, subdomain))
}

func scanTenant(row rowScanner) (models.Tenant, error) {
	var tenant models.Tenant
	if err := row.Scan(&tenant.ID, &tenant.Subdomain, &tenant.Name, &tenant.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, ErrTenantNotFound
		}
		return models.Tenant{}, err
	}
	return tenant, nil
}

var _ TenantStore = (*TenantRepository)(nil)

package postgres

import (
	"context"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository reads the property and user tables owned by the
// listings and account services.
type DirectoryRepository struct {
	q querier
}

func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{q: db}
}

func (r *DirectoryRepository) PropertyLandlord(ctx context.Context, propertyID int64) (int64, error) {
	var landlordID int64
	if err := r.q.QueryRow(ctx, qPropertyLandlord, propertyID).Scan(&landlordID); err != nil {
		return 0, mapPgError(err, domain.ErrPropertyNotFound)
	}
	return landlordID, nil
}

func (r *DirectoryRepository) UserName(ctx context.Context, userID int64) (string, error) {
	var name *string
	if err := r.q.QueryRow(ctx, qUserName, userID).Scan(&name); err != nil {
		return "", mapPgError(err, domain.ErrNotFound)
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

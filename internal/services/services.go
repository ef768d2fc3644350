// Package services holds the application use cases. Each exported method is
// one command or query: it validates input, loads aggregates through the
// tenant-scoped store, mutates them and persists the result.
package services

import (
	"context"
	"errors"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNoPrincipal = apperr.Unauthorized(apperr.CodeMissingToken, "authentication required")

// principal returns the caller from ctx. Clinic-bound operations also need a
// clinic in the principal.
func principal(ctx context.Context) (domain.Principal, error) {
	p, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.Principal{}, errNoPrincipal
	}
	return p, nil
}

func clinicPrincipal(ctx context.Context) (domain.Principal, error) {
	p, err := principal(ctx)
	if err != nil {
		return p, err
	}
	if !p.HasClinic() {
		return p, apperr.Forbidden("operation requires a clinic account")
	}
	return p, nil
}

// saveRecord writes every column of rec except associations and omit. A row
// that no longer matches, for instance because it moved out of scope, is
// reported as not found.
func saveRecord(tx *gorm.DB, rec interface{}, resource string, omit ...string) error {
	res := tx.Model(rec).Select("*").Omit(append([]string{clause.Associations}, omit...)...).Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}

// validationFrom keeps typed errors and turns plain constructor errors into
// validation errors.
func validationFrom(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e
	}
	return apperr.Validation(apperr.CodeValidation, err.Error())
}

func revokeRefreshTokens(tx *gorm.DB, userID uuid.UUID, now time.Time) error {
	return tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Updates(map[string]interface{}{"is_revoked": true, "revoked_at": now}).Error
}

// page applies offset pagination.
func page(db *gorm.DB, pageNum, size int) *gorm.DB {
	return db.Offset((pageNum - 1) * size).Limit(size)
}

package workflow

import (
	"context"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/sahlretail/backoffice_backend/models"
	"github.com/sahlretail/backoffice_backend/utils"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// beginIdempotency claims the caller-supplied dedup key (if any) inside the
// posting transaction. The key row commits or rolls back with the rest of
// the unit of work, so an existing row always belongs to a request that
// already succeeded and the insert hitting the unique constraint is the
// whole duplicate check; a failed attempt leaves no row and retries freely.
func beginIdempotency(ctx context.Context, tx *gorm.DB, handlerName string) error {
	requestKey, ok := utils.GetIdempotencyKeyFromContext(ctx)
	if !ok || requestKey == "" {
		return nil
	}

	key := models.IdempotencyKey{
		HandlerName: handlerName,
		RequestKey:  requestKey,
	}
	err := tx.Create(&key).Error
	if isDuplicateKeyErr(err) {
		return utils.ErrorDuplicateRequest
	}
	return err
}

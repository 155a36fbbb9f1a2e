package workflow

import (
	"fmt"
	"sort"

	"github.com/sahlretail/backoffice_backend/models"
	"gorm.io/gorm"
)

// Per-account serialization for ledger posting, using MySQL advisory locks.
// Two concurrent requests reading the same "last balance" before either
// commits would race; holding the account lock for the whole posting
// transaction prevents that without optimistic retries.
//
// NOTE: GET_LOCK is connection-scoped, so these must be called on the same
// *gorm.DB transaction that does the posting.

var accountLockRank = map[models.LedgerAccount]int{
	models.LedgerAccountCash:   0,
	models.LedgerAccountBank:   1,
	models.LedgerAccountShabka: 2,
}

// SortAccountsForLocking dedupes and orders accounts into the fixed
// Cash < Bank < Shabka acquisition order, so multi-account operations can
// never deadlock each other.
func SortAccountsForLocking(accounts []models.LedgerAccount) []models.LedgerAccount {
	seen := make(map[models.LedgerAccount]bool, len(accounts))
	out := make([]models.LedgerAccount, 0, len(accounts))
	for _, a := range accounts {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return accountLockRank[out[i]] < accountLockRank[out[j]]
	})
	return out
}

func acquireNamedLock(tx *gorm.DB, lockName string) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock %s", lockName)
	}
	return nil
}

func releaseNamedLock(tx *gorm.DB, lockName string) {
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// AcquireAccountPostingLocks serializes posting per account, in fixed order.
func AcquireAccountPostingLocks(tx *gorm.DB, accounts ...models.LedgerAccount) error {
	for _, account := range SortAccountsForLocking(accounts) {
		if err := acquireNamedLock(tx, "posting:"+string(account)); err != nil {
			return err
		}
	}
	return nil
}

func ReleaseAccountPostingLocks(tx *gorm.DB, accounts ...models.LedgerAccount) {
	ordered := SortAccountsForLocking(accounts)
	for i := len(ordered) - 1; i >= 0; i-- {
		releaseNamedLock(tx, "posting:"+string(ordered[i]))
	}
}

// AcquireVendorPostingLock serializes a vendor's payable stream.
func AcquireVendorPostingLock(tx *gorm.DB, vendorId int) error {
	return acquireNamedLock(tx, fmt.Sprintf("posting:vendor:%d", vendorId))
}

func ReleaseVendorPostingLock(tx *gorm.DB, vendorId int) {
	releaseNamedLock(tx, fmt.Sprintf("posting:vendor:%d", vendorId))
}

package models

import (
	"log"

	"github.com/sahlretail/backoffice_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LedgerEntry{},
		&Invoice{}, &InvoiceItem{}, &InvoicePayment{},
		&Advance{},
		&Vendor{}, &VendorTransaction{},
		&Expense{},
		&SalesPerson{},
		&AuditLog{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

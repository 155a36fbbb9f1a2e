package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
	"gorm.io/gorm"
)

func main() {
	accountFlag := flag.String("account", "", "Optional: single account to rebuild (Cash/Bank/Shabka). Defaults to all.")
	fromDateStr := flag.String("from", "", "Optional: rebuild from date (YYYY-MM-DD). Defaults to earliest entry date for the account.")
	vendorID := flag.Int("vendor-id", 0, "Optional: also replay one vendor's payable stream (0 = all vendors)")
	vendorsOnly := flag.Bool("vendors-only", false, "Skip account streams, replay vendor streams only")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing streams and continue rebuilding others")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	accounts := models.AllLedgerAccounts
	if strings.TrimSpace(*accountFlag) != "" {
		account := models.LedgerAccount(strings.TrimSpace(*accountFlag))
		if !account.Valid() {
			fmt.Fprintf(os.Stderr, "invalid account: %s\n", *accountFlag)
			os.Exit(1)
		}
		accounts = []models.LedgerAccount{account}
	}

	if !*vendorsOnly {
		for _, account := range accounts {
			start := time.Time{}
			if strings.TrimSpace(*fromDateStr) != "" {
				d, err := time.Parse("2006-01-02", strings.TrimSpace(*fromDateStr))
				if err != nil {
					fmt.Fprintf(os.Stderr, "invalid from date: %v\n", err)
					os.Exit(1)
				}
				start = d
			} else {
				db.Raw(`
					SELECT COALESCE(MIN(entry_date), NOW()) AS start_date
					FROM ledger_entries
					WHERE account = ? AND status = 'active'
				`, account).Scan(&start)
			}

			fmt.Printf("Rebuilding account=%s from=%s\n", account, start.Format(time.RFC3339))
			err := db.Transaction(func(tx *gorm.DB) error {
				return models.RecalculateBalances(tx, account, start)
			})
			if err != nil {
				if *continueOnError {
					fmt.Fprintf(os.Stderr, "rebuild failed (skipping): %v\n", err)
					continue
				}
				fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
				os.Exit(1)
			}
		}
	}

	var vendorIds []int
	if *vendorID > 0 {
		vendorIds = append(vendorIds, *vendorID)
	} else {
		if err := db.Raw(`SELECT id FROM vendors ORDER BY id`).Scan(&vendorIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover vendors: %v\n", err)
			os.Exit(1)
		}
	}
	for _, id := range vendorIds {
		fmt.Printf("Replaying vendor=%d\n", id)
		err := db.Transaction(func(tx *gorm.DB) error {
			return models.ReplayVendorBalances(tx, id)
		})
		if err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "replay failed (skipping): %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("ledger rebuild complete")
}

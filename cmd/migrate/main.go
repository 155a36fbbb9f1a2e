package main

import (
	"fmt"
	"os"

	"github.com/sahlretail/backoffice_backend/config"
	"github.com/sahlretail/backoffice_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	models.MigrateTable()
	fmt.Println("migration complete")
}

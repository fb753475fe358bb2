package versions

import (
	"modelstudio/studio/schema"

	"gorm.io/gorm"
)

// Adds the request audit table and the presence table. Deployments created
// before these existed only have the core modeling tables.
func Migration_1_request_audit(txn *gorm.DB) error {
	if err := txn.Migrator().AutoMigrate(&schema.RequestAudit{}); err != nil {
		return err
	}
	return txn.Migrator().AutoMigrate(&schema.Presence{})
}

func Rollback_1_request_audit(txn *gorm.DB) error {
	if err := txn.Migrator().DropTable(&schema.Presence{}); err != nil {
		return err
	}
	return txn.Migrator().DropTable(&schema.RequestAudit{})
}

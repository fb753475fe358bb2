package modelgraph

import (
	"log/slog"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeleteReferential nulls out referential_id on every entity pointing at the
// referential, then deletes the referential row. Entities are never deleted; a
// referential is a visual grouping, not an owner. Per ReferentialDeletePolicy both
// steps commit together: a dangling referential pointer breaks the diagram silently,
// so a failed null-out aborts the deletion.
func (g *Graph) DeleteReferential(referentialId uuid.UUID) error {
	return g.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetReferential(referentialId, txn); err != nil {
			return err
		}

		result := txn.Model(&schema.Entity{}).Where("referential_id = ?", referentialId).Update("referential_id", nil)
		if result.Error != nil {
			slog.Error("sql error clearing referential from entities", "referential_id", referentialId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		result = txn.Delete(&schema.Referential{Id: referentialId})
		if result.Error != nil {
			slog.Error("sql error deleting referential", "referential_id", referentialId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
}

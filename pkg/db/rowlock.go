package db

import (
	"strings"

	"gorm.io/gorm"
)

// ForUpdate returns the row-lock clause for the active dialect. The sqlite
// driver used in tests does not understand FOR UPDATE; single-connection
// serialization covers it there.
func ForUpdate(db *gorm.DB) string {
	if isSQLite(db) {
		return ""
	}
	return " FOR UPDATE"
}

// ForUpdateSkipLocked is used by batch sweeps so concurrent runners claim
// disjoint rows instead of queueing on each other.
func ForUpdateSkipLocked(db *gorm.DB) string {
	if isSQLite(db) {
		return ""
	}
	return " FOR UPDATE SKIP LOCKED"
}

func isSQLite(db *gorm.DB) bool {
	return db != nil && strings.EqualFold(db.Dialector.Name(), "sqlite")
}

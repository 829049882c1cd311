package services

import "github.com/custodia-labs/catalog-sync/internal/core/domain"

// Classify compares a listed record with its local counterpart.
// local is nil when the store has no record for the identifier.
//
// Change detection compares every summary field. The remote modified marker
// is also compared, but only when both sides carry one, so catalogs that
// never report it fall back to field comparison alone.
func Classify(remote domain.RemoteRecord, local *domain.LocalRecord) domain.Classification {
	switch {
	case local == nil:
		return domain.ClassNew
	case !local.HasDetail:
		return domain.ClassDetailMissing
	case summaryChanged(remote, local):
		return domain.ClassChanged
	default:
		return domain.ClassUnchanged
	}
}

func summaryChanged(remote domain.RemoteRecord, local *domain.LocalRecord) bool {
	if remote.Summary != local.Summary {
		return true
	}
	if !remote.Modified.IsZero() && !local.Modified.IsZero() {
		return !remote.Modified.Equal(local.Modified)
	}
	return false
}

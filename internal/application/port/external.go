package port

import "github.com/garyjia/pr-workflow/internal/domain/entity"

// PurchaseOrderExporter renders a PO and its source PR as a document
type PurchaseOrderExporter interface {
	Export(po *entity.PurchaseOrder, pr *entity.Requisition) ([]byte, error)
	ContentType() string
	Extension() string
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

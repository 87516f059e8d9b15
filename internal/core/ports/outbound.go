package ports

import (
	"context"
	"io"
	"time"

	"github.com/jortvara/caesync/internal/core/domain"
)

// CatalogStore persists document types and document instances. The core only
// reads documents; writes happen through explicit operator or submission
// actions routed back through SaveDocument.
type CatalogStore interface {
	GetType(ctx context.Context, typeID string) (*domain.DocumentType, error)
	ListTypes(ctx context.Context, includeInactive bool) ([]domain.DocumentType, error)
	CreateType(ctx context.Context, t *domain.DocumentType) error
	UpdateType(ctx context.Context, t *domain.DocumentType) error

	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentInstance, error)
	GetDocument(ctx context.Context, docID string) (*domain.DocumentInstance, error)
	SaveDocument(ctx context.Context, doc *domain.DocumentInstance) error

	// Location reports the resolved storage location backing this store,
	// used by the debug reporter to detect data-dir mismatches.
	Location() string
}

// ArtifactStore holds the raw stored files referenced by catalog documents.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	ContentHash(ctx context.Context, key string) (string, error)
}

// HintStore persists learned hints. Put is idempotent on the content-addressed
// hint id; Disable is the only mutation allowed after creation.
type HintStore interface {
	Put(ctx context.Context, hint domain.LearnedHint) error
	Disable(ctx context.Context, hintID string) error
	ListEnabled(ctx context.Context, hctx domain.HintContext) ([]domain.LearnedHint, error)
	ListHints(ctx context.Context, includeDisabled bool) ([]domain.LearnedHint, error)
}

// RequirementSource carries pending-requirement batches from the scraping
// collaborator into the core.
type RequirementSource interface {
	PublishBatch(ctx context.Context, batch domain.RequirementBatch) error
	SubscribeBatches(ctx context.Context, handler func(context.Context, domain.RequirementBatch) error) error
	Close()
}

// PortalUploader is the browser-automation collaborator. The core never
// assumes anything about how the upload happens; it only consumes the receipt.
type PortalUploader interface {
	PerformUpload(ctx context.Context, doc *domain.DocumentInstance, req domain.PendingRequirement) (domain.UploadReceipt, error)
}

// MetadataExtractor pulls candidate dates out of a stored artifact. Used only
// by best-effort period backfill; failure is not an error condition.
type MetadataExtractor interface {
	ExtractDates(ctx context.Context, storageKey string) ([]time.Time, error)
}

package services

import (
	"context"
	"github.com/maxaizer/jobfeed/internal/entities"
)

type postingsStore interface {
	FindByLink(ctx context.Context, link string) (*entities.StoredPosting, error)
	InsertBatch(ctx context.Context, postings []entities.StoredPosting) (int, error)
	MarkResurfaced(ctx context.Context, ids []uint) (int, error)
	MarkStale(ctx context.Context, module string, seenLinks []string) (int, error)
	BackfillModule(ctx context.Context, id uint, module string) error
	CountAll(ctx context.Context) (int64, error)
}

type classifier interface {
	Tag(title, description string) []string
}

type reconcileResult struct {
	added      int
	resurfaced int
}

// reconciler merges one source's postings into the store. Links are the only
// identity: unknown links are tagged and inserted, known ones are flagged as new
// again and get their module filled in if it was never set. Descriptive fields
// of stored postings are never overwritten. Clearing is_new on postings that
// were not listed is left to the orchestrator, once every source has finished.
type reconciler struct {
	store      postingsStore
	classifier classifier
}

func (r *reconciler) reconcile(ctx context.Context, postings []entities.Posting) (reconcileResult, error) {
	var result reconcileResult

	toInsert := make([]entities.StoredPosting, 0, len(postings))
	resurfaced := make([]uint, 0)

	for _, posting := range postings {
		existing, err := r.store.FindByLink(ctx, posting.Link)
		if err != nil {
			return result, err
		}

		if existing == nil {
			toInsert = append(toInsert, entities.NewStoredPosting(posting, r.classifier.Tag(posting.Title, posting.Description)))
			continue
		}

		if existing.Module == "" && posting.Module != "" {
			if err = r.store.BackfillModule(ctx, existing.ID, posting.Module); err != nil {
				return result, err
			}
		}
		resurfaced = append(resurfaced, existing.ID)
	}

	added, err := r.store.InsertBatch(ctx, toInsert)
	result.added = added
	if err != nil {
		return result, err
	}

	result.resurfaced, err = r.store.MarkResurfaced(ctx, resurfaced)
	return result, err
}

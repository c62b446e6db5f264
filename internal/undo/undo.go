// Package undo inverts operations previously recorded in the operation
// log, driving the same afero.Fs-backed mutator used to perform them.
package undo

import (
	"context"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/mutate"
	"github.com/gwlsn/mediavault/internal/store"
)

// Engine reverts operation log entries.
type Engine struct {
	st  store.Store
	mut *mutate.Mutator
}

// New creates an undo Engine using mut to perform inverse filesystem
// operations and st to read/update the operation log.
func New(st store.Store, mut *mutate.Mutator) *Engine {
	return &Engine{st: st, mut: mut}
}

// Undo reverses the operation logged under id. Rename and move are
// undone by moving the file back from DstPath to SrcPath; trash is
// undone via the normal Restore path, which also removes the trash
// record. Copy and delete are not reversible: a copy leaves the
// original untouched so there is nothing to undo, and a delete has no
// recoverable bytes.
func (e *Engine) Undo(ctx context.Context, id uuid.UUID) error {
	entry, err := e.st.GetOperationLog(ctx, id)
	if err != nil {
		return err
	}
	if entry.Undone {
		return apperr.New(apperr.Conflict, "operation already undone")
	}

	switch entry.Kind {
	case model.OpRename, model.OpMove:
		if err := e.mut.Move(ctx, entry.DstPath, entry.SrcPath); err != nil {
			return err
		}
	case model.OpTrash:
		item, err := e.trashItemFor(ctx, entry)
		if err != nil {
			return err
		}
		if err := e.mut.Restore(ctx, item.ID); err != nil {
			return err
		}
	case model.OpCopy:
		return apperr.New(apperr.InvalidArgument, "copy operations cannot be undone")
	case model.OpDelete:
		return apperr.New(apperr.InvalidArgument, "delete operations cannot be undone")
	default:
		return apperr.New(apperr.InvalidArgument, "unknown operation kind: "+string(entry.Kind))
	}

	return e.st.MarkLogUndone(ctx, id)
}

// trashItemFor locates the trash record matching entry's recorded
// original/trash path pair, since the operation log and trash table are
// separate records of the same event.
func (e *Engine) trashItemFor(ctx context.Context, entry *model.OperationLogEntry) (*model.TrashItem, error) {
	items, err := e.st.ListTrash(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.OriginalPath == entry.SrcPath && item.TrashPath == entry.DstPath {
			return item, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "no matching trash record for operation")
}

// History returns the most recent operation log entries, newest first,
// for building an undo list in a client.
func (e *Engine) History(ctx context.Context, limit int) ([]*model.OperationLogEntry, error) {
	return e.st.ListOperationLog(ctx, limit)
}

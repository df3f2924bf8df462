// file: internal/executor/executor.go
// version: 1.0.0
// guid: 4c8e0a2d-6f1b-4d7c-9e3a-2b4d6f8a0c2e

package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/planner"
	"github.com/jdfalk/bookbot/internal/txstore"
)

// TagIO is the tag and cover I/O the executor needs for applying writes and
// capturing their inverses. tagger.Tagger is the production implementation.
type TagIO interface {
	ReadTags(path string) (models.TagSet, error)
	WriteTags(path string, tags models.TagSet) error
	ReadCover(path string) ([]byte, error)
	WriteCover(path string, image []byte) error
}

// Transcoder re-encodes one audio file. Dst's extension selects the target
// container.
type Transcoder interface {
	Available() bool
	Transcode(ctx context.Context, src, dst, bitrate string) error
}

// CoverFetcher retrieves cover image bytes for a cover URL.
type CoverFetcher func(ctx context.Context, url string) ([]byte, error)

// Store is the transaction log the executor records into. *txstore.Store is
// the production implementation.
type Store interface {
	NewID() (string, error)
	Append(tx *txstore.Transaction) error
	Update(tx *txstore.Transaction) error
	Get(id string) (*txstore.Transaction, error)
}

// Options are the optional executor collaborators.
type Options struct {
	Transcoder Transcoder
	FetchCover CoverFetcher
	Progress   ProgressFunc
	// StashDir holds transcode sources so the operation stays invertible.
	// Defaults to a "stash" directory next to the running process's temp.
	StashDir string
}

// Executor applies plans transactionally and undoes recorded transactions.
type Executor struct {
	store      Store
	tags       TagIO
	transcoder Transcoder
	fetchCover CoverFetcher
	progress   ProgressFunc
	stashDir   string
}

// New builds an executor around a transaction store and tag I/O.
func New(store Store, tags TagIO, opts Options) *Executor {
	e := &Executor{
		store:      store,
		tags:       tags,
		transcoder: opts.Transcoder,
		fetchCover: opts.FetchCover,
		progress:   opts.Progress,
		stashDir:   opts.StashDir,
	}
	if e.fetchCover == nil {
		e.fetchCover = httpFetchCover
	}
	if e.stashDir == "" {
		e.stashDir = filepath.Join(os.TempDir(), "bookbot-stash")
	}
	return e
}

// Apply executes the plan's operations in order, capturing each operation's
// inverse just before applying it. On any failure every already-applied
// operation is reverted in strict reverse order and the rolled back
// transaction is recorded with the failing operation and reason.
//
// On success the committed transaction is durably recorded before Apply
// returns; if that record cannot be written the filesystem changes stay in
// place and a StoreWriteError is returned.
func (e *Executor) Apply(ctx context.Context, plan *planner.Plan) (*txstore.Transaction, error) {
	id, err := e.store.NewID()
	if err != nil {
		return nil, err
	}
	tx := &txstore.Transaction{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		Status:        txstore.StatusCommitted,
		GroupDir:      plan.GroupDir,
		Record:        plan.Record,
		Ops:           append([]planner.Operation(nil), plan.Ops...),
		FailedOp:      -1,
		UndoneThrough: -1,
	}

	total := int64(len(tx.Ops))
	for i := range tx.Ops {
		err := ctx.Err()
		if err == nil {
			err = e.applyOp(ctx, tx.ID, &tx.Ops[i])
		}
		if err != nil {
			log.Printf("[WARN] executor: operation %d failed, rolling back: %v", i, err)
			rbErr := e.rollback(tx.Ops[:i])
			tx.Status = txstore.StatusRolledBack
			tx.FailedOp = i
			tx.FailReason = err.Error()
			if rbErr != nil {
				tx.FailReason += "; rollback incomplete: " + rbErr.Error()
			}
			if serr := e.store.Append(tx); serr != nil {
				return tx, errors.Join(err, &StoreWriteError{TxID: tx.ID, Err: serr})
			}
			return tx, err
		}
		if e.progress != nil {
			e.progress("applying plan", int64(i+1), total)
		}
	}

	if err := e.store.Append(tx); err != nil {
		return tx, &StoreWriteError{TxID: tx.ID, Err: err}
	}
	return tx, nil
}

// Undo reverts a committed transaction by replaying the stored inverses in
// reverse order, then flips its status to undone. A transaction that is
// already undone or was rolled back yields InvalidStateError. If an inverse
// fails the transaction stays committed and the resume point is recorded so
// a later Undo picks up where this one stopped.
func (e *Executor) Undo(ctx context.Context, id string) error {
	tx, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if tx.Status != txstore.StatusCommitted {
		return &InvalidStateError{ID: tx.ID, Status: tx.Status}
	}

	start := len(tx.Ops) - 1
	if tx.UndoneThrough >= 0 {
		start = tx.UndoneThrough - 1
	}
	for i := start; i >= 0; i-- {
		err := ctx.Err()
		if err == nil {
			err = e.invertOp(ctx, &tx.Ops[i])
		}
		if err != nil {
			tx.UndoneThrough = i + 1
			if uerr := e.store.Update(tx); uerr != nil {
				return errors.Join(err, uerr)
			}
			return fmt.Errorf("undo of %s stopped at operation %d: %w", tx.ID, i, err)
		}
		if e.progress != nil {
			e.progress("undoing "+tx.ID, int64(len(tx.Ops)-i), int64(len(tx.Ops)))
		}
	}

	tx.Status = txstore.StatusUndone
	tx.UndoneThrough = 0
	return e.store.Update(tx)
}

// applyOp performs one operation, filling in its inverse payload first.
func (e *Executor) applyOp(ctx context.Context, txID string, op *planner.Operation) error {
	switch op.Kind {
	case planner.OpMove:
		return moveFile(op.Src, op.Dst, e.progress)

	case planner.OpWriteTags:
		prev, err := e.tags.ReadTags(op.Dst)
		if err != nil {
			return fmt.Errorf("failed to capture prior tags of %s: %w", op.Dst, err)
		}
		op.PrevTags = &prev
		return e.tags.WriteTags(op.Dst, *op.Tags)

	case planner.OpWriteCover:
		prev, err := e.tags.ReadCover(op.Dst)
		if err != nil {
			return fmt.Errorf("failed to capture prior cover of %s: %w", op.Dst, err)
		}
		op.PrevCover = prev
		image, err := e.fetchCover(ctx, op.CoverURL)
		if err != nil {
			return fmt.Errorf("failed to fetch cover %s: %w", op.CoverURL, err)
		}
		return e.tags.WriteCover(op.Dst, image)

	case planner.OpTranscode:
		if e.transcoder == nil || !e.transcoder.Available() {
			return fmt.Errorf("no transcoder available for %s", op.Src)
		}
		if err := e.transcoder.Transcode(ctx, op.Src, op.Dst, op.Bitrate); err != nil {
			return err
		}
		stash := filepath.Join(e.stashDir, txID, filepath.Base(op.Src))
		if err := moveFile(op.Src, stash, nil); err != nil {
			os.Remove(op.Dst)
			return fmt.Errorf("failed to stash transcode source: %w", err)
		}
		op.Stash = stash
		return nil

	case planner.OpRemoveDir:
		err := os.Remove(op.Dst)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		// The directory gained entries between planning and apply.
		if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			log.Printf("[WARN] executor: %s not empty anymore, leaving it", op.Dst)
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// invertOp reverts one applied operation using its captured inverse.
func (e *Executor) invertOp(ctx context.Context, op *planner.Operation) error {
	switch op.Kind {
	case planner.OpMove:
		return moveFile(op.Dst, op.Src, e.progress)

	case planner.OpWriteTags:
		if op.PrevTags == nil {
			return fmt.Errorf("no prior tags recorded for %s", op.Dst)
		}
		return e.tags.WriteTags(op.Dst, *op.PrevTags)

	case planner.OpWriteCover:
		// A nil prior cover removes the one we embedded.
		return e.tags.WriteCover(op.Dst, op.PrevCover)

	case planner.OpTranscode:
		if err := os.Remove(op.Dst); err != nil && !os.IsNotExist(err) {
			return err
		}
		if op.Stash == "" {
			return fmt.Errorf("no stashed source recorded for %s", op.Src)
		}
		return moveFile(op.Stash, op.Src, nil)

	case planner.OpRemoveDir:
		return os.MkdirAll(op.Dst, 0o755)

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// rollback reverts already-applied operations in reverse order, continuing
// past individual failures so as much as possible is restored.
func (e *Executor) rollback(applied []planner.Operation) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		if err := e.invertOp(context.Background(), &applied[i]); err != nil {
			log.Printf("[ERROR] executor: rollback of operation %d failed: %v", i, err)
			errs = append(errs, fmt.Errorf("operation %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// httpFetchCover is the default cover fetcher.
func httpFetchCover(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Package batch drives range downloads: one channel, a contiguous id
// range, strictly sequential, under quota and cancellation control.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/savegram-io/savegram/internal/auth"
	"github.com/savegram-io/savegram/internal/fetch"
	"github.com/savegram-io/savegram/internal/models"
	"github.com/savegram-io/savegram/internal/storage"
	"github.com/savegram-io/savegram/internal/tasks"
)

// Ledger is the quota seam the runner uses: a read-only check before
// each download attempt and a charge after each confirmed success.
// Failed and skipped items are never charged.
type Ledger interface {
	CanProceed(userID int64) (bool, string, error)
	Increment(userID int64, n int) error
}

// Saver persists a materialized artifact; nil disables persistence
type Saver interface {
	Save(ctx context.Context, userID int64, art *fetch.Artifact) (*storage.StoredArtifact, error)
}

// Range is a validated contiguous span of item ids in one channel
type Range struct {
	Channel string `json:"channel"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
}

// ValidateRange checks the two endpoints before any fetch happens
func ValidateRange(start, end fetch.PostRef) (Range, error) {
	if start.ChannelID != end.ChannelID {
		return Range{}, errors.New("both links must be from the same channel")
	}
	if start.ItemID > end.ItemID {
		return Range{}, errors.New("invalid range: start ID cannot exceed end ID")
	}
	return Range{Channel: start.ChannelID, Start: start.ItemID, End: end.ItemID}, nil
}

// Summary reports the outcome of one batch run
type Summary struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("downloaded=%d skipped=%d failed=%d", s.Downloaded, s.Skipped, s.Failed)
}

// ItemResult is the outcome of a single-item download
type ItemResult struct {
	Descriptor *fetch.Descriptor       `json:"descriptor"`
	Stored     *storage.StoredArtifact `json:"stored,omitempty"`
}

// Options tune a Runner
type Options struct {
	Pace           time.Duration // delay between batch items
	FreeCapBytes   int64         // media size cap for free tier
	PaidCapBytes   int64         // media size cap for paid/admin
	RemoveArtifact bool          // delete the local file after Save
}

// Runner retrieves items one at a time. The sequential loop and the
// pacing delay bound the request rate against the upstream provider.
type Runner struct {
	fetcher  fetch.Service
	ledger   Ledger
	registry *tasks.Registry
	saver    Saver
	sessions auth.Provider
	opts     Options
}

// NewRunner wires a runner over its collaborators. saver may be nil.
func NewRunner(fetcher fetch.Service, ledger Ledger, registry *tasks.Registry, saver Saver, sessions auth.Provider, opts Options) *Runner {
	return &Runner{
		fetcher:  fetcher,
		ledger:   ledger,
		registry: registry,
		saver:    saver,
		sessions: sessions,
		opts:     opts,
	}
}

// Run walks the range in ascending order, one item at a time. A single
// item's failure never aborts the rest of the range; cancellation does,
// reporting the partial counts accumulated so far alongside
// context.Canceled.
func (r *Runner) Run(ctx context.Context, user *models.User, rng Range) (Summary, error) {
	var summary Summary

	if !r.sessions.HasActiveSession(user.ID) {
		return summary, fetch.ErrAuthExpired
	}

	for id := rng.Start; id <= rng.End; id++ {
		if err := ctx.Err(); err != nil {
			return summary, context.Canceled
		}

		desc, err := r.fetcher.Describe(ctx, rng.Channel, id)
		switch {
		case err == nil && !desc.Downloadable():
			summary.Skipped++
		case err == nil:
			// Quota can run out mid-batch, e.g. when a paid
			// subscription expires while the range is running.
			if err := r.checkQuota(user.ID); err != nil {
				return summary, err
			}
			_, err := r.runRegistered(ctx, user, desc)
			switch {
			case err == nil:
				summary.Downloaded++
				if err := r.ledger.Increment(user.ID, 1); err != nil {
					log.Printf("Error charging quota for user %d: %v", user.ID, err)
				}
			case fetch.IsCanceled(err):
				return summary, context.Canceled
			case fetch.IsSkippable(err):
				summary.Skipped++
			default:
				summary.Failed++
				log.Printf("Error downloading %s/%d: %v", rng.Channel, id, err)
			}
		case fetch.IsSkippable(err):
			summary.Skipped++
		case fetch.IsCanceled(err):
			return summary, context.Canceled
		default:
			summary.Failed++
			log.Printf("Error describing %s/%d: %v", rng.Channel, id, err)
		}

		if id < rng.End {
			select {
			case <-time.After(r.opts.Pace):
			case <-ctx.Done():
				return summary, context.Canceled
			}
		}
	}

	return summary, nil
}

// DownloadOne is the single-item path. It shares the registration and
// quota-on-success discipline with Run but has no range loop or pacing.
func (r *Runner) DownloadOne(ctx context.Context, user *models.User, ref fetch.PostRef) (*ItemResult, error) {
	if !r.sessions.HasActiveSession(user.ID) {
		return nil, fetch.ErrAuthExpired
	}

	desc, err := r.fetcher.Describe(ctx, ref.ChannelID, ref.ItemID)
	if err != nil {
		return nil, err
	}
	if !desc.Downloadable() {
		return nil, fetch.ErrNoDownloadableContent
	}

	if err := r.checkQuota(user.ID); err != nil {
		return nil, err
	}

	stored, err := r.runRegistered(ctx, user, desc)
	if err != nil {
		return nil, err
	}

	if err := r.ledger.Increment(user.ID, 1); err != nil {
		log.Printf("Error charging quota for user %d: %v", user.ID, err)
	}
	return &ItemResult{Descriptor: desc, Stored: stored}, nil
}

// checkQuota is the read-only pre-flight check before each download
// attempt. It never consumes quota; the charge happens on success.
func (r *Runner) checkQuota(userID int64) error {
	allowed, _, err := r.ledger.CanProceed(userID)
	if err != nil {
		return fmt.Errorf("failed to check quota for user %d: %w", userID, err)
	}
	if !allowed {
		return fetch.ErrQuotaExceeded
	}
	return nil
}

// runRegistered wraps the download attempt as a registry task so that a
// process-wide cancel reaches it, then waits for the outcome.
func (r *Runner) runRegistered(ctx context.Context, user *models.User, desc *fetch.Descriptor) (*storage.StoredArtifact, error) {
	var stored *storage.StoredArtifact
	task := r.registry.Register(ctx, user.ID, func(taskCtx context.Context) error {
		var err error
		stored, err = r.materialize(taskCtx, user, desc)
		return err
	})
	if err := task.Wait(); err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *Runner) materialize(ctx context.Context, user *models.User, desc *fetch.Descriptor) (*storage.StoredArtifact, error) {
	if desc.HasMedia && desc.SizeBytes > r.capFor(user) {
		return nil, fmt.Errorf("%w: %d bytes", fetch.ErrSizeExceeded, desc.SizeBytes)
	}

	art, err := r.fetcher.Materialize(ctx, desc)
	if err != nil {
		return nil, err
	}

	if r.saver == nil {
		return nil, nil
	}
	stored, err := r.saver.Save(ctx, user.ID, art)
	if err != nil {
		return nil, err
	}
	if r.opts.RemoveArtifact && art.Path != "" {
		if err := os.Remove(art.Path); err != nil {
			log.Printf("Warning: failed to remove local artifact %s: %v", art.Path, err)
		}
	}
	return stored, nil
}

func (r *Runner) capFor(user *models.User) int64 {
	switch user.EffectiveRole(time.Now()) {
	case models.RolePaid, models.RoleAdmin:
		return r.opts.PaidCapBytes
	default:
		return r.opts.FreeCapBytes
	}
}

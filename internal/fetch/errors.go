package fetch

import (
	"context"
	"errors"
)

var (
	// ErrAuthExpired means no valid session exists; the caller must re-run
	// the external auth flow before retrying.
	ErrAuthExpired = errors.New("no active session")

	// ErrNotAMember means the session's credential has no access to the
	// requested channel.
	ErrNotAMember = errors.New("not a member of the channel")

	// ErrContentAbsent means there is no post at the requested id.
	ErrContentAbsent = errors.New("no post at this id")

	// ErrNoDownloadableContent means the post exists but carries neither
	// media nor text.
	ErrNoDownloadableContent = errors.New("post has no media or text")

	// ErrSizeExceeded means the media exceeds the size cap for the
	// requester's tier.
	ErrSizeExceeded = errors.New("media exceeds size limit")

	// ErrQuotaExceeded means the free-tier daily cap has been reached.
	ErrQuotaExceeded = errors.New("daily download limit reached")

	// ErrTransient is a retryable provider or network failure. Retry
	// policy belongs to a higher layer; this core only classifies.
	ErrTransient = errors.New("transient provider error")
)

// IsCanceled reports whether err is a cancellation, either from the task
// registry or an explicit stop request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsSkippable reports whether err means the item should count as skipped
// rather than failed in a batch run.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrContentAbsent) || errors.Is(err, ErrNoDownloadableContent)
}

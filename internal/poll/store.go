package poll

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint. The store must fail the insert, never overwrite.
	ErrDuplicate = errors.New("duplicate record")
)

// Tallies is a recomputed snapshot of a poll's derived counters, used by
// the reconcile maintenance operation.
type Tallies struct {
	TotalVotes int64
	PerOption  map[string]int64
	Likes      int64
}

// Store is the persistence contract for polls, votes and likes.
//
// The uniqueness constraint on (pollId, userId) for votes and likes is the
// load-bearing invariant under concurrent writes: service-level existence
// checks are only a fast path, the store is the actual guarantor.
type Store interface {
	InsertPoll(ctx context.Context, p *Poll) error
	GetPoll(ctx context.Context, id string) (*Poll, error)
	ListPolls(ctx context.Context) ([]Poll, error)
	DeletePoll(ctx context.Context, id string) error

	// IncrementVote bumps totalVotes and the matched option's counter in
	// one indivisible update.
	IncrementVote(ctx context.Context, pollID, optionID string) error
	// IncrementLikes bumps the likes counter by delta (may be negative).
	IncrementLikes(ctx context.Context, pollID string, delta int64) error
	// SetTallies overwrites the derived counters with recomputed values.
	SetTallies(ctx context.Context, pollID string, t Tallies) error

	InsertVote(ctx context.Context, v *Vote) error
	FindVote(ctx context.Context, pollID, userID string) (*Vote, error)
	VotesByUser(ctx context.Context, userID string) ([]Vote, error)
	CountVotes(ctx context.Context, pollID string) (total int64, perOption map[string]int64, err error)
	DeleteVotes(ctx context.Context, pollID string) error

	InsertLike(ctx context.Context, l *Like) error
	FindLike(ctx context.Context, pollID, userID string) (*Like, error)
	DeleteLike(ctx context.Context, pollID, userID string) error
	LikesByUser(ctx context.Context, userID string) ([]Like, error)
	CountLikes(ctx context.Context, pollID string) (int64, error)
	DeleteLikes(ctx context.Context, pollID string) error
}

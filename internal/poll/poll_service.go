package poll

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"poll-service/internal/apperror"
	"poll-service/internal/identity"
)

// Domain events pushed to subscribers. Poll-scoped events go to the
// poll-<id> topic, the rest to the global topic.
const (
	EventPollCreated = "poll-created"
	EventPollUpdated = "poll-updated"
	EventPollVoted   = "poll-voted"
	EventPollLiked   = "poll-liked"
	EventPollDeleted = "poll-deleted"
)

// Broadcaster fans domain events out to interested subscribers.
// Delivery is best-effort: implementations log failures and never return
// them, so a dropped event can never fail the originating request.
type Broadcaster interface {
	ToAll(event string, payload any)
	ToPoll(pollID string, event string, payload any)
}

// AlreadyVotedError reports a rejected second vote together with the
// option the caller already picked. Votes are immutable once cast.
type AlreadyVotedError struct {
	OptionID string
}

func (e *AlreadyVotedError) Error() string {
	return "already voted on this poll"
}

// CreateInput is the validated-on-entry payload for Create.
type CreateInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

// ListResult joins all polls with the caller's own votes and likes.
type ListResult struct {
	Polls     []Poll            `json:"polls"`
	UserVotes map[string]string `json:"userVotes"`
	UserLikes map[string]bool   `json:"userLikes"`
}

// View is one poll plus the caller's own vote and like state.
type View struct {
	Poll      *Poll  `json:"poll"`
	UserVote  string `json:"userVote,omitempty"`
	UserLiked bool   `json:"userLiked"`
}

// VoteResult is the synchronous response to a successful vote.
type VoteResult struct {
	Poll     *Poll  `json:"poll"`
	OptionID string `json:"userVote"`
}

// LikeResult reports the new like state after a toggle.
type LikeResult struct {
	Poll  *Poll `json:"poll"`
	Liked bool  `json:"userLiked"`
}

// Service implements the poll aggregation logic: validation, the one-vote
// and like-toggle invariants, cascade delete, and event emission. The
// store is the single source of truth; the broadcaster is injected so
// tests can record events instead of pushing them over the wire.
type Service struct {
	store     Store
	broadcast Broadcaster
}

func NewService(store Store, broadcast Broadcaster) *Service {
	return &Service{store: store, broadcast: broadcast}
}

// Create validates and persists a new poll, then announces it globally.
// Blank option texts are dropped and duplicates collapsed; fewer than two
// surviving options is a validation failure, never silently padded.
func (s *Service) Create(ctx context.Context, caller identity.Caller, in CreateInput) (*Poll, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.New(apperror.KindValidation, "title is required")
	}

	seen := make(map[string]bool, len(in.Options))
	options := make([]Option, 0, len(in.Options))
	for _, text := range in.Options {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		options = append(options, Option{ID: uuid.New().String(), Text: text})
	}
	if len(options) < 2 {
		return nil, apperror.New(apperror.KindValidation, "at least 2 distinct options required")
	}

	now := time.Now().UTC()
	p := &Poll{
		ID:            uuid.New().String(),
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Options:       options,
		CreatedBy:     caller.ID,
		CreatedByName: caller.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.InsertPoll(ctx, p); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to create poll", err)
	}

	s.broadcast.ToAll(EventPollCreated, p)
	return p, nil
}

// List returns all polls newest-first plus the caller's own vote and like
// mappings. Anonymous callers get empty mappings. Read-only: tallies are
// never touched here.
func (s *Service) List(ctx context.Context, caller *identity.Caller) (*ListResult, error) {
	polls, err := s.store.ListPolls(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch polls", err)
	}

	result := &ListResult{
		Polls:     polls,
		UserVotes: map[string]string{},
		UserLikes: map[string]bool{},
	}
	if result.Polls == nil {
		result.Polls = []Poll{}
	}

	if caller != nil {
		votes, err := s.store.VotesByUser(ctx, caller.ID)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch votes", err)
		}
		for _, v := range votes {
			result.UserVotes[v.PollID] = v.OptionID
		}

		likes, err := s.store.LikesByUser(ctx, caller.ID)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch likes", err)
		}
		for _, l := range likes {
			result.UserLikes[l.PollID] = true
		}
	}

	return result, nil
}

// Get returns one poll with the caller's own vote and like state.
func (s *Service) Get(ctx context.Context, pollID string, caller *identity.Caller) (*View, error) {
	p, err := s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	view := &View{Poll: p}
	if caller == nil {
		return view, nil
	}

	if v, err := s.store.FindVote(ctx, pollID, caller.ID); err == nil {
		view.UserVote = v.OptionID
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch vote", err)
	}

	if _, err := s.store.FindLike(ctx, pollID, caller.ID); err == nil {
		view.UserLiked = true
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch like", err)
	}

	return view, nil
}

// CastVote records an immutable vote. A second vote for the same poll
// fails with a conflict carrying the recorded option id: the service-level
// existence check only fails fast, the store's uniqueness constraint is
// what actually guarantees at most one vote under concurrent calls.
func (s *Service) CastVote(ctx context.Context, caller identity.Caller, pollID, optionID string) (*VoteResult, error) {
	p, err := s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.Option(optionID) == nil {
		return nil, apperror.New(apperror.KindValidation, "invalid option")
	}

	if existing, err := s.store.FindVote(ctx, pollID, caller.ID); err == nil {
		return nil, s.alreadyVoted(existing.OptionID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to check vote", err)
	}

	vote := &Vote{
		PollID:    pollID,
		OptionID:  optionID,
		UserID:    caller.ID,
		UserName:  caller.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost the race against a concurrent vote from the same user.
			winner, findErr := s.store.FindVote(ctx, pollID, caller.ID)
			if findErr != nil {
				return nil, apperror.Wrap(apperror.KindInternal, "failed to check vote", findErr)
			}
			return nil, s.alreadyVoted(winner.OptionID)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "failed to record vote", err)
	}

	// The vote row exists but the counters do not reflect it yet; a
	// failure here must surface, never report a false success. Reconcile
	// repairs the drift.
	if err := s.store.IncrementVote(ctx, pollID, optionID); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to update tallies", err)
	}

	p, err = s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	s.broadcast.ToPoll(pollID, EventPollUpdated, p)
	s.broadcast.ToAll(EventPollVoted, votedPayload{PollID: pollID, Poll: p})

	return &VoteResult{Poll: p, OptionID: optionID}, nil
}

// ToggleLike flips the caller's like for a poll and adjusts the counter.
// The decrement is not clamped at zero: a negative count means the
// counter drifted from the Like records, which Reconcile detects.
func (s *Service) ToggleLike(ctx context.Context, caller identity.Caller, pollID string) (*LikeResult, error) {
	if _, err := s.getPoll(ctx, pollID); err != nil {
		return nil, err
	}

	var liked bool
	_, err := s.store.FindLike(ctx, pollID, caller.ID)
	switch {
	case err == nil:
		delErr := s.store.DeleteLike(ctx, pollID, caller.ID)
		switch {
		case delErr == nil:
			if err := s.store.IncrementLikes(ctx, pollID, -1); err != nil {
				return nil, apperror.Wrap(apperror.KindInternal, "failed to update tallies", err)
			}
		case errors.Is(delErr, ErrNotFound):
			// Lost the race against a concurrent unlike: the winner removed
			// the record and owns its decrement. Decrementing again would
			// detach the counter from the Like records.
		default:
			return nil, apperror.Wrap(apperror.KindInternal, "failed to remove like", delErr)
		}
	case errors.Is(err, ErrNotFound):
		like := &Like{PollID: pollID, UserID: caller.ID, CreatedAt: time.Now().UTC()}
		if err := s.store.InsertLike(ctx, like); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return nil, apperror.New(apperror.KindConflict, "already liked this poll")
			}
			return nil, apperror.Wrap(apperror.KindInternal, "failed to record like", err)
		}
		if err := s.store.IncrementLikes(ctx, pollID, 1); err != nil {
			return nil, apperror.Wrap(apperror.KindInternal, "failed to update tallies", err)
		}
		liked = true
	default:
		return nil, apperror.Wrap(apperror.KindInternal, "failed to check like", err)
	}

	p, err := s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	s.broadcast.ToPoll(pollID, EventPollUpdated, p)
	s.broadcast.ToAll(EventPollLiked, votedPayload{PollID: pollID, Poll: p})

	return &LikeResult{Poll: p, Liked: liked}, nil
}

// Delete removes a poll and cascade-deletes its votes and likes. Only the
// creator may delete. All three deletions must complete before success is
// reported; orphaned vote or like records are a correctness bug.
func (s *Service) Delete(ctx context.Context, caller identity.Caller, pollID string) error {
	p, err := s.getPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if p.CreatedBy != caller.ID {
		return apperror.New(apperror.KindForbidden, "not authorized to delete this poll")
	}

	if err := s.store.DeletePoll(ctx, pollID); err != nil && !errors.Is(err, ErrNotFound) {
		return apperror.Wrap(apperror.KindInternal, "failed to delete poll", err)
	}
	if err := s.store.DeleteVotes(ctx, pollID); err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to delete votes", err)
	}
	if err := s.store.DeleteLikes(ctx, pollID); err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to delete likes", err)
	}

	s.broadcast.ToAll(EventPollDeleted, deletedPayload{PollID: pollID})
	return nil
}

// Reconcile recomputes totalVotes, per-option counts and likes from the
// Vote and Like collections and overwrites the stored tallies. This is
// the maintenance path for counter drift; it is never on the hot path.
// Only the poll's creator may trigger it.
func (s *Service) Reconcile(ctx context.Context, caller identity.Caller, pollID string) (*Poll, error) {
	p, err := s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if p.CreatedBy != caller.ID {
		return nil, apperror.New(apperror.KindForbidden, "not authorized to reconcile this poll")
	}

	total, perOption, err := s.store.CountVotes(ctx, pollID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to count votes", err)
	}
	likes, err := s.store.CountLikes(ctx, pollID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to count likes", err)
	}

	t := Tallies{TotalVotes: total, PerOption: perOption, Likes: likes}
	if err := s.store.SetTallies(ctx, pollID, t); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to write tallies", err)
	}

	p, err = s.getPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	s.broadcast.ToPoll(pollID, EventPollUpdated, p)
	return p, nil
}

func (s *Service) getPoll(ctx context.Context, pollID string) (*Poll, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.New(apperror.KindNotFound, "poll not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to fetch poll", err)
	}
	return p, nil
}

func (s *Service) alreadyVoted(optionID string) error {
	return apperror.Wrap(apperror.KindConflict, "already voted on this poll", &AlreadyVotedError{OptionID: optionID})
}

type votedPayload struct {
	PollID string `json:"pollId"`
	Poll   *Poll  `json:"poll"`
}

type deletedPayload struct {
	PollID string `json:"pollId"`
}

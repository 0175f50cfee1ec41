package poll

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// memStore is an in-memory Store for tests. It mirrors the semantics the
// service relies on, in particular uniqueness of (pollId, userId) for
// votes and likes under concurrent inserts.
type memStore struct {
	mu    sync.Mutex
	polls map[string]*Poll
	votes map[string]*Vote
	likes map[string]*Like

	// failVoteIncrement simulates a tally update failing after the vote
	// row was written.
	failVoteIncrement bool
}

func newMemStore() *memStore {
	return &memStore{
		polls: make(map[string]*Poll),
		votes: make(map[string]*Vote),
		likes: make(map[string]*Like),
	}
}

func voteKey(pollID, userID string) string {
	return pollID + "|" + userID
}

func copyPoll(p *Poll) *Poll {
	cp := *p
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}

func (m *memStore) InsertPoll(_ context.Context, p *Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[p.ID]; ok {
		return ErrDuplicate
	}
	m.polls[p.ID] = copyPoll(p)
	return nil
}

func (m *memStore) GetPoll(_ context.Context, id string) (*Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPoll(p), nil
}

func (m *memStore) ListPolls(_ context.Context) ([]Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	polls := make([]Poll, 0, len(m.polls))
	for _, p := range m.polls {
		polls = append(polls, *copyPoll(p))
	}
	sort.Slice(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
	return polls, nil
}

func (m *memStore) DeletePoll(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.polls[id]; !ok {
		return ErrNotFound
	}
	delete(m.polls, id)
	return nil
}

func (m *memStore) IncrementVote(_ context.Context, pollID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failVoteIncrement {
		return errors.New("simulated tally failure")
	}
	p, ok := m.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	opt := p.Option(optionID)
	if opt == nil {
		return ErrNotFound
	}
	opt.Votes++
	p.TotalVotes++
	return nil
}

func (m *memStore) IncrementLikes(_ context.Context, pollID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	p.Likes += delta
	return nil
}

func (m *memStore) SetTallies(_ context.Context, pollID string, t Tallies) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	p.TotalVotes = t.TotalVotes
	p.Likes = t.Likes
	for i := range p.Options {
		p.Options[i].Votes = t.PerOption[p.Options[i].ID]
	}
	return nil
}

func (m *memStore) InsertVote(_ context.Context, v *Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := voteKey(v.PollID, v.UserID)
	if _, ok := m.votes[key]; ok {
		return ErrDuplicate
	}
	cp := *v
	m.votes[key] = &cp
	return nil
}

func (m *memStore) FindVote(_ context.Context, pollID, userID string) (*Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey(pollID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) VotesByUser(_ context.Context, userID string) ([]Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var votes []Vote
	for _, v := range m.votes {
		if v.UserID == userID {
			votes = append(votes, *v)
		}
	}
	return votes, nil
}

func (m *memStore) CountVotes(_ context.Context, pollID string) (int64, map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perOption := make(map[string]int64)
	var total int64
	for _, v := range m.votes {
		if v.PollID == pollID {
			perOption[v.OptionID]++
			total++
		}
	}
	return total, perOption, nil
}

func (m *memStore) DeleteVotes(_ context.Context, pollID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.votes {
		if v.PollID == pollID {
			delete(m.votes, key)
		}
	}
	return nil
}

func (m *memStore) InsertLike(_ context.Context, l *Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := voteKey(l.PollID, l.UserID)
	if _, ok := m.likes[key]; ok {
		return ErrDuplicate
	}
	cp := *l
	m.likes[key] = &cp
	return nil
}

func (m *memStore) FindLike(_ context.Context, pollID, userID string) (*Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.likes[voteKey(pollID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) DeleteLike(_ context.Context, pollID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := voteKey(pollID, userID)
	if _, ok := m.likes[key]; !ok {
		return ErrNotFound
	}
	delete(m.likes, key)
	return nil
}

func (m *memStore) LikesByUser(_ context.Context, userID string) ([]Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var likes []Like
	for _, l := range m.likes {
		if l.UserID == userID {
			likes = append(likes, *l)
		}
	}
	return likes, nil
}

func (m *memStore) CountLikes(_ context.Context, pollID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, l := range m.likes {
		if l.PollID == pollID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) DeleteLikes(_ context.Context, pollID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, l := range m.likes {
		if l.PollID == pollID {
			delete(m.likes, key)
		}
	}
	return nil
}

// recorder captures broadcast events for assertions.
type recorder struct {
	mu     sync.Mutex
	global []recordedEvent
	scoped []recordedEvent
}

type recordedEvent struct {
	PollID string
	Event  string
	Data   any
}

func (r *recorder) ToAll(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global = append(r.global, recordedEvent{Event: event, Data: payload})
}

func (r *recorder) ToPoll(pollID string, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scoped = append(r.scoped, recordedEvent{PollID: pollID, Event: event, Data: payload})
}

func (r *recorder) globalEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.global))
	for i, e := range r.global {
		names[i] = e.Event
	}
	return names
}

func (r *recorder) scopedEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.scoped))
	for i, e := range r.scoped {
		names[i] = e.Event
	}
	return names
}

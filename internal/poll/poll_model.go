package poll

import "time"

// Option is one selectable choice within a poll. Options are embedded in
// the poll document; Votes reference them by id.
type Option struct {
	ID    string `bson:"id" json:"id"`
	Text  string `bson:"text" json:"text"`
	Votes int64  `bson:"votes" json:"votes"`
}

// Poll is a question with at least two options, owned by its creator.
// TotalVotes and Likes are maintained by atomic increments and must equal
// the derivable counts; Reconcile repairs them if they ever drift.
type Poll struct {
	ID            string    `bson:"_id" json:"id"`
	Title         string    `bson:"title" json:"title"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	Options       []Option  `bson:"options" json:"options"`
	CreatedBy     string    `bson:"createdBy" json:"createdBy"`
	CreatedByName string    `bson:"createdByName" json:"createdByName"`
	TotalVotes    int64     `bson:"totalVotes" json:"totalVotes"`
	Likes         int64     `bson:"likes" json:"likes"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Option returns the embedded option with the given id, or nil.
func (p *Poll) Option(optionID string) *Option {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}

// Vote binds one user to one option within one poll. Votes are immutable
// once cast; at most one exists per (pollId, userId).
type Vote struct {
	PollID    string    `bson:"pollId" json:"pollId"`
	OptionID  string    `bson:"optionId" json:"optionId"`
	UserID    string    `bson:"userId" json:"userId"`
	UserName  string    `bson:"userName" json:"userName"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Like records a user's approval of a poll. At most one exists per
// (pollId, userId); toggling removes and re-inserts it.
type Like struct {
	PollID    string    `bson:"pollId" json:"pollId"`
	UserID    string    `bson:"userId" json:"userId"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

package poll

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	pollsCollection = "polls"
	votesCollection = "votes"
	likesCollection = "likes"
)

// MongoStore implements Store on top of MongoDB. Uniqueness of votes and
// likes per (pollId, userId) is enforced by compound unique indexes, and
// tally updates use a single $inc document so the scalar counter and the
// matched array element move together.
type MongoStore struct {
	polls *mongo.Collection
	votes *mongo.Collection
	likes *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		polls: db.Collection(pollsCollection),
		votes: db.Collection(votesCollection),
		likes: db.Collection(likesCollection),
	}
}

// EnsureIndexes creates the unique compound indexes the one-vote and
// one-like invariants rely on, plus the newest-first listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	userPollUnique := mongo.IndexModel{
		Keys:    bson.D{{Key: "pollId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	if _, err := s.votes.Indexes().CreateOne(ctx, userPollUnique); err != nil {
		return fmt.Errorf("create votes index: %w", err)
	}
	if _, err := s.likes.Indexes().CreateOne(ctx, userPollUnique); err != nil {
		return fmt.Errorf("create likes index: %w", err)
	}

	createdAtDesc := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}
	if _, err := s.polls.Indexes().CreateOne(ctx, createdAtDesc); err != nil {
		return fmt.Errorf("create polls index: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertPoll(ctx context.Context, p *Poll) error {
	if _, err := s.polls.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert poll: %w", err)
	}
	return nil
}

func (s *MongoStore) GetPoll(ctx context.Context, id string) (*Poll, error) {
	var p Poll
	err := s.polls.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) ListPolls(ctx context.Context) ([]Poll, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.polls.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}
	defer cur.Close(ctx)

	var polls []Poll
	if err := cur.All(ctx, &polls); err != nil {
		return nil, fmt.Errorf("decode polls: %w", err)
	}
	return polls, nil
}

func (s *MongoStore) DeletePoll(ctx context.Context, id string) error {
	res, err := s.polls.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) IncrementVote(ctx context.Context, pollID, optionID string) error {
	res, err := s.polls.UpdateOne(ctx,
		bson.M{"_id": pollID, "options.id": optionID},
		bson.M{
			"$inc": bson.M{"totalVotes": 1, "options.$.votes": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("increment vote: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) IncrementLikes(ctx context.Context, pollID string, delta int64) error {
	res, err := s.polls.UpdateOne(ctx,
		bson.M{"_id": pollID},
		bson.M{
			"$inc": bson.M{"likes": delta},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("increment likes: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetTallies(ctx context.Context, pollID string, t Tallies) error {
	p, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}

	set := bson.M{
		"totalVotes": t.TotalVotes,
		"likes":      t.Likes,
		"updatedAt":  time.Now().UTC(),
	}
	for i := range p.Options {
		set[fmt.Sprintf("options.%d.votes", i)] = t.PerOption[p.Options[i].ID]
	}

	res, err := s.polls.UpdateOne(ctx, bson.M{"_id": pollID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("set tallies: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertVote(ctx context.Context, v *Vote) error {
	if _, err := s.votes.InsertOne(ctx, v); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *MongoStore) FindVote(ctx context.Context, pollID, userID string) (*Vote, error) {
	var v Vote
	err := s.votes.FindOne(ctx, bson.M{"pollId": pollID, "userId": userID}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &v, nil
}

func (s *MongoStore) VotesByUser(ctx context.Context, userID string) ([]Vote, error) {
	cur, err := s.votes.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("votes by user: %w", err)
	}
	defer cur.Close(ctx)

	var votes []Vote
	if err := cur.All(ctx, &votes); err != nil {
		return nil, fmt.Errorf("decode votes: %w", err)
	}
	return votes, nil
}

func (s *MongoStore) CountVotes(ctx context.Context, pollID string) (int64, map[string]int64, error) {
	cur, err := s.votes.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"pollId": pollID}}},
		{{Key: "$group", Value: bson.M{"_id": "$optionId", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("count votes: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		OptionID string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, nil, fmt.Errorf("decode vote counts: %w", err)
	}

	perOption := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		perOption[row.OptionID] = row.Count
		total += row.Count
	}
	return total, perOption, nil
}

func (s *MongoStore) DeleteVotes(ctx context.Context, pollID string) error {
	if _, err := s.votes.DeleteMany(ctx, bson.M{"pollId": pollID}); err != nil {
		return fmt.Errorf("delete votes: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertLike(ctx context.Context, l *Like) error {
	if _, err := s.likes.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

func (s *MongoStore) FindLike(ctx context.Context, pollID, userID string) (*Like, error) {
	var l Like
	err := s.likes.FindOne(ctx, bson.M{"pollId": pollID, "userId": userID}).Decode(&l)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find like: %w", err)
	}
	return &l, nil
}

func (s *MongoStore) DeleteLike(ctx context.Context, pollID, userID string) error {
	res, err := s.likes.DeleteOne(ctx, bson.M{"pollId": pollID, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) LikesByUser(ctx context.Context, userID string) ([]Like, error) {
	cur, err := s.likes.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("likes by user: %w", err)
	}
	defer cur.Close(ctx)

	var likes []Like
	if err := cur.All(ctx, &likes); err != nil {
		return nil, fmt.Errorf("decode likes: %w", err)
	}
	return likes, nil
}

func (s *MongoStore) CountLikes(ctx context.Context, pollID string) (int64, error) {
	count, err := s.likes.CountDocuments(ctx, bson.M{"pollId": pollID})
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

func (s *MongoStore) DeleteLikes(ctx context.Context, pollID string) error {
	if _, err := s.likes.DeleteMany(ctx, bson.M{"pollId": pollID}); err != nil {
		return fmt.Errorf("delete likes: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joescharf/issuetracker/internal/models"
)

const mongoCollection = "issues"

// MongoStore implements Store on a MongoDB collection. All projects share one
// collection partitioned by the project field.
type MongoStore struct {
	client *mongo.Client
	issues *mongo.Collection
}

// NewMongoStore connects to uri and selects database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	if database == "" {
		return nil, errors.New("mongo database is empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		issues: client.Database(database).Collection(mongoCollection),
	}, nil
}

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.issues.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create project index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	prepareInsert(issue)
	if _, err := s.issues.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *MongoStore) FindIssues(ctx context.Context, project string, filter IssueFilter) ([]*models.Issue, error) {
	if filter.Unsatisfiable {
		return []*models.Issue{}, nil
	}

	query := bson.D{{Key: "project", Value: project}}
	for _, f := range filter.fields() {
		query = append(query, bson.E{Key: f.name, Value: f.value})
	}

	cur, err := s.issues.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}

	issues := []*models.Issue{}
	if err := cur.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	for _, issue := range issues {
		issue.CreatedOn = models.Timestamp(issue.CreatedOn)
		issue.UpdatedOn = models.Timestamp(issue.UpdatedOn)
	}
	return issues, nil
}

func (s *MongoStore) UpdateIssue(ctx context.Context, project string, id models.ID, patch IssuePatch) error {
	fields := patch.fields()
	if len(fields) == 0 {
		return fmt.Errorf("update issue: empty patch")
	}

	set := bson.D{}
	for _, f := range fields {
		set = append(set, bson.E{Key: f.name, Value: f.value})
	}

	res, err := s.issues.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "project", Value: project}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

func (s *MongoStore) DeleteIssue(ctx context.Context, project string, id models.ID) error {
	res, err := s.issues.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "project", Value: project}})
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id.Hex())
	}
	return nil
}

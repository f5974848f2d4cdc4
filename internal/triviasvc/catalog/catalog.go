package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// QuestionCatalog reads question records from the external question
// bank. The game core never writes here.
type QuestionCatalog struct {
	coll *mongo.Collection
}

func NewQuestionCatalog(db *mongo.Database) *QuestionCatalog {
	return &QuestionCatalog{coll: db.Collection("questions")}
}

// PickQuestions samples up to n distinct questions matching the
// category filter. $sample draws without replacement within one
// aggregation, which is exactly the selection guarantee a room needs.
// Fewer than n matches returns the short list; the caller decides
// whether that is fatal.
func (c *QuestionCatalog) PickQuestions(ctx context.Context, categories []string, n int) ([]*models.Question, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"category_id": bson.M{"$in": categories}}}},
		bson.D{{Key: "$sample", Value: bson.M{"size": n}}},
	}

	cursor, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []*models.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return questions, nil
}

func (c *QuestionCatalog) GetQuestion(ctx context.Context, questionID string) (*models.Question, error) {
	q := &models.Question{}
	err := c.coll.FindOne(ctx, bson.M{"_id": questionID}).Decode(q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question %s: %w", questionID, err)
	}
	return q, nil
}

package models

// Question type values as stored in the catalog.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionMultiBlank     = "multi_blank"
)

// Question is a catalog record. The catalog is an external collaborator;
// this is the shape the game core consumes.
type Question struct {
	ID          string   `bson:"_id" json:"id"`
	CategoryID  string   `bson:"category_id" json:"category_id"`
	Difficulty  string   `bson:"difficulty" json:"difficulty"` // easy, medium, hard
	Type        string   `bson:"question_type" json:"type"`
	Text        string   `bson:"question_text" json:"question"`
	Options     []string `bson:"options" json:"options"`
	Answer      []string `bson:"answer" json:"answer,omitempty"` // Canonical tokens; single element unless multi_blank
	Explanation string   `bson:"explanation" json:"explanation,omitempty"`
}

// CanonicalValue returns the question's answer as the tagged variant
// matching its declared type.
func (q *Question) CanonicalValue() AnswerValue {
	if q.Type == QuestionMultiBlank {
		return OrderedAnswer(q.Answer)
	}
	if len(q.Answer) == 0 {
		return SingleAnswer("")
	}
	return SingleAnswer(q.Answer[0])
}

// Public returns a copy safe to send to players mid-round: canonical
// answer and explanation stripped.
func (q *Question) Public() Question {
	cp := *q
	cp.Answer = nil
	cp.Explanation = ""
	return cp
}

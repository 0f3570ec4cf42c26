package content

import (
	"fmt"
	"time"

	"github.com/stackit-qa/stackit/internal/platform/httpx"
)

// Kind names a content type. Values match moderation target types.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
	KindComment  Kind = "comment"
)

// VoteType is the direction of a vote on an answer.
type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Valid reports whether v is a known vote direction.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

var (
	// ErrInvalidVote is returned for unknown vote directions.
	ErrInvalidVote = fmt.Errorf("content: invalid vote: %w", httpx.ErrValidation)
	// ErrUnknownKind is returned when an owner lookup names an unknown kind.
	ErrUnknownKind = fmt.Errorf("content: unknown kind: %w", httpx.ErrValidation)
	// ErrLocked is returned when a locked question receives new answers, comments or votes.
	ErrLocked = fmt.Errorf("content: question is locked: %w", httpx.ErrForbidden)
)

// State mirrors the moderation flags stored for a piece of content.
type State struct {
	Flagged  bool `json:"flagged,omitempty"`
	Hidden   bool `json:"hidden,omitempty"`
	Locked   bool `json:"locked,omitempty"`
	Featured bool `json:"featured,omitempty"`
	Deleted  bool `json:"deleted,omitempty"`
}

// Visible reports whether regular readers may see the content.
func (s State) Visible() bool {
	return !s.Hidden && !s.Deleted
}

// Question is a post asking for answers. AuthorID is empty once the author's
// account is removed.
type Question struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id,omitempty"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Tags             []string  `json:"tags"`
	AcceptedAnswerID string    `json:"accepted_answer_id,omitempty"`
	AnswerCount      int       `json:"answer_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	State
}

// Answer replies to a question.
type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AuthorID   string    `json:"author_id,omitempty"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"is_accepted"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	State
}

// Score is upvotes minus downvotes.
func (a Answer) Score() int {
	return a.Upvotes - a.Downvotes
}

// Comment is a short remark on an answer.
type Comment struct {
	ID        string    `json:"id"`
	AnswerID  string    `json:"answer_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	State
}

// Thread is a question with its answers and their comments.
type Thread struct {
	Question Question             `json:"question"`
	Answers  []Answer             `json:"answers"`
	Comments map[string][]Comment `json:"comments"`
}

// VoteResult is an answer's tally after a vote. Current is the caller's
// standing vote, empty when a repeated vote withdrew it.
type VoteResult struct {
	AnswerID  string   `json:"answer_id"`
	Upvotes   int      `json:"upvotes"`
	Downvotes int      `json:"downvotes"`
	Current   VoteType `json:"current,omitempty"`
}

// QuestionInput carries the editable fields of a question.
type QuestionInput struct {
	Title string   `json:"title" validate:"required,min=10,max=200"`
	Body  string   `json:"body" validate:"required,min=20,max=20000"`
	Tags  []string `json:"tags" validate:"required,min=1,max=5,dive,min=1,max=32"`
}

// AnswerInput carries the editable fields of an answer.
type AnswerInput struct {
	Body string `json:"body" validate:"required,min=10,max=20000"`
}

// CommentInput carries the text of a comment.
type CommentInput struct {
	Body string `json:"body" validate:"required,min=2,max=600"`
}

// ListFilter narrows a question listing.
type ListFilter struct {
	Tag           string
	Search        string
	IncludeHidden bool
}

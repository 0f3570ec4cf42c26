package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackit-qa/stackit/internal/platform/db"
	"github.com/stackit-qa/stackit/internal/shared"
)

// Repository persists questions, answers, comments and votes.
type Repository interface {
	CreateQuestion(ctx context.Context, q *Question) error
	UpdateQuestion(ctx context.Context, q *Question) error
	DeleteQuestion(ctx context.Context, id string) error
	FindQuestion(ctx context.Context, id string) (*Question, error)
	ListQuestions(ctx context.Context, filter ListFilter, limit, offset int) ([]Question, int, error)

	CreateAnswer(ctx context.Context, a *Answer) error
	UpdateAnswer(ctx context.Context, a *Answer) error
	DeleteAnswer(ctx context.Context, id string) error
	FindAnswer(ctx context.Context, id string) (*Answer, error)
	ListAnswers(ctx context.Context, questionID string) ([]Answer, error)
	AcceptAnswer(ctx context.Context, questionID, answerID string) error

	CreateComment(ctx context.Context, c *Comment) error
	DeleteComment(ctx context.Context, id string) error
	FindComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, questionID string) ([]Comment, error)

	Vote(ctx context.Context, userID, answerID string, v VoteType) (VoteResult, error)
}

// PGRepository implements Repository on PostgreSQL. Moderation flags are
// read from moderation_state.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const stateColumns = `COALESCE(ms.flagged, FALSE), COALESCE(ms.hidden, FALSE), COALESCE(ms.locked, FALSE),
	COALESCE(ms.featured, FALSE), COALESCE(ms.deleted, FALSE)`

const selectQuestion = `SELECT q.id::text, COALESCE(q.author_id::text, ''), q.title, q.body, q.tags,
	COALESCE(q.accepted_answer_id::text, ''),
	(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id),
	q.created_at, q.updated_at, ` + stateColumns + `
	FROM questions q
	LEFT JOIN moderation_state ms ON ms.target_type = 'question' AND ms.target_id = q.id::text`

const selectAnswer = `SELECT a.id::text, a.question_id::text, COALESCE(a.author_id::text, ''), a.body,
	a.is_accepted, a.upvotes, a.downvotes, a.created_at, a.updated_at, ` + stateColumns + `
	FROM answers a
	LEFT JOIN moderation_state ms ON ms.target_type = 'answer' AND ms.target_id = a.id::text`

const selectComment = `SELECT c.id::text, c.answer_id::text, COALESCE(c.author_id::text, ''), c.body,
	c.created_at, ` + stateColumns + `
	FROM comments c
	LEFT JOIN moderation_state ms ON ms.target_type = 'comment' AND ms.target_id = c.id::text`

func scanState(s *State) []any {
	return []any{&s.Flagged, &s.Hidden, &s.Locked, &s.Featured, &s.Deleted}
}

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	dest := append([]any{&q.ID, &q.AuthorID, &q.Title, &q.Body, &q.Tags, &q.AcceptedAnswerID,
		&q.AnswerCount, &q.CreatedAt, &q.UpdatedAt}, scanState(&q.State)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanAnswer(row pgx.Row) (*Answer, error) {
	var a Answer
	dest := append([]any{&a.ID, &a.QuestionID, &a.AuthorID, &a.Body, &a.IsAccepted,
		&a.Upvotes, &a.Downvotes, &a.CreatedAt, &a.UpdatedAt}, scanState(&a.State)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanComment(row pgx.Row) (*Comment, error) {
	var c Comment
	dest := append([]any{&c.ID, &c.AnswerID, &c.AuthorID, &c.Body, &c.CreatedAt}, scanState(&c.State)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return fmt.Errorf("content: find %s: %w", what, err)
}

// CreateQuestion inserts q and fills its timestamps.
func (r *PGRepository) CreateQuestion(ctx context.Context, q *Question) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO questions (id, author_id, title, body, tags)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		q.ID, q.AuthorID, q.Title, q.Body, q.Tags,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("content: insert question: %w", err)
	}
	return nil
}

// UpdateQuestion rewrites the editable fields of q.
func (r *PGRepository) UpdateQuestion(ctx context.Context, q *Question) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE questions SET title = $2, body = $3, tags = $4, updated_at = NOW()
		 WHERE id = $1::uuid RETURNING updated_at`,
		q.ID, q.Title, q.Body, q.Tags,
	).Scan(&q.UpdatedAt)
	if err != nil {
		return notFound(err, "question")
	}
	return nil
}

// DeleteQuestion removes a question with its answers, comments and votes.
func (r *PGRepository) DeleteQuestion(ctx context.Context, id string) error {
	return r.delete(ctx, `DELETE FROM questions WHERE id = $1::uuid`, id)
}

// FindQuestion fetches a question by id.
func (r *PGRepository) FindQuestion(ctx context.Context, id string) (*Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, selectQuestion+` WHERE q.id = $1::uuid`, id))
	if err != nil {
		return nil, notFound(err, "question")
	}
	return q, nil
}

// ListQuestions returns a page of questions, featured first and then newest
// first, with the total count. Search uses the full text index.
func (r *PGRepository) ListQuestions(ctx context.Context, filter ListFilter, limit, offset int) ([]Question, int, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeHidden {
		where = append(where, `NOT COALESCE(ms.hidden, FALSE)`, `NOT COALESCE(ms.deleted, FALSE)`)
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf(`$%d = ANY(q.tags)`, len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		where = append(where, fmt.Sprintf(`to_tsvector('english', q.title || ' ' || q.body) @@ plainto_tsquery('english', $%d)`, len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM questions q
		LEFT JOIN moderation_state ms ON ms.target_type = 'question' AND ms.target_id = q.id::text` + clause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("content: count questions: %w", err)
	}

	args = append(args, limit, offset)
	query := selectQuestion + clause + fmt.Sprintf(
		` ORDER BY COALESCE(ms.featured, FALSE) DESC, q.created_at DESC, q.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("content: list questions: %w", err)
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("content: scan question: %w", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("content: list questions: %w", err)
	}
	return out, total, nil
}

// CreateAnswer inserts a and fills its timestamps.
func (r *PGRepository) CreateAnswer(ctx context.Context, a *Answer) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO answers (id, question_id, author_id, body)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4)
		 RETURNING created_at, updated_at`,
		a.ID, a.QuestionID, a.AuthorID, a.Body,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("content: insert answer: %w", err)
	}
	return nil
}

// UpdateAnswer rewrites the body of a.
func (r *PGRepository) UpdateAnswer(ctx context.Context, a *Answer) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE answers SET body = $2, updated_at = NOW() WHERE id = $1::uuid RETURNING updated_at`,
		a.ID, a.Body,
	).Scan(&a.UpdatedAt)
	if err != nil {
		return notFound(err, "answer")
	}
	return nil
}

// DeleteAnswer removes an answer with its comments and votes.
func (r *PGRepository) DeleteAnswer(ctx context.Context, id string) error {
	return r.delete(ctx, `DELETE FROM answers WHERE id = $1::uuid`, id)
}

// FindAnswer fetches an answer by id.
func (r *PGRepository) FindAnswer(ctx context.Context, id string) (*Answer, error) {
	a, err := scanAnswer(r.pool.QueryRow(ctx, selectAnswer+` WHERE a.id = $1::uuid`, id))
	if err != nil {
		return nil, notFound(err, "answer")
	}
	return a, nil
}

// ListAnswers returns a question's answers, accepted first and then by score.
func (r *PGRepository) ListAnswers(ctx context.Context, questionID string) ([]Answer, error) {
	rows, err := r.pool.Query(ctx, selectAnswer+
		` WHERE a.question_id = $1::uuid
		  ORDER BY a.is_accepted DESC, a.upvotes - a.downvotes DESC, a.created_at`, questionID)
	if err != nil {
		return nil, fmt.Errorf("content: list answers: %w", err)
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("content: scan answer: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content: list answers: %w", err)
	}
	return out, nil
}

// AcceptAnswer marks answerID as the single accepted answer of questionID.
func (r *PGRepository) AcceptAnswer(ctx context.Context, questionID, answerID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Clear first; answers_one_accepted_idx is checked row by row.
		if _, err := tx.Exec(ctx,
			`UPDATE answers SET is_accepted = FALSE WHERE question_id = $1::uuid AND is_accepted`,
			questionID); err != nil {
			return fmt.Errorf("content: accept answer: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE answers SET is_accepted = TRUE WHERE id = $2::uuid AND question_id = $1::uuid`,
			questionID, answerID); err != nil {
			return fmt.Errorf("content: accept answer: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE questions SET accepted_answer_id = $2::uuid, updated_at = NOW() WHERE id = $1::uuid`,
			questionID, answerID)
		if err != nil {
			return fmt.Errorf("content: accept answer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CreateComment inserts c and fills its timestamp.
func (r *PGRepository) CreateComment(ctx context.Context, c *Comment) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO comments (id, answer_id, author_id, body)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4)
		 RETURNING created_at`,
		c.ID, c.AnswerID, c.AuthorID, c.Body,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("content: insert comment: %w", err)
	}
	return nil
}

// DeleteComment removes a comment.
func (r *PGRepository) DeleteComment(ctx context.Context, id string) error {
	return r.delete(ctx, `DELETE FROM comments WHERE id = $1::uuid`, id)
}

// FindComment fetches a comment by id.
func (r *PGRepository) FindComment(ctx context.Context, id string) (*Comment, error) {
	c, err := scanComment(r.pool.QueryRow(ctx, selectComment+` WHERE c.id = $1::uuid`, id))
	if err != nil {
		return nil, notFound(err, "comment")
	}
	return c, nil
}

// ListComments returns the comments on every answer of a question, oldest first.
func (r *PGRepository) ListComments(ctx context.Context, questionID string) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, selectComment+
		` JOIN answers an ON an.id = c.answer_id
		  WHERE an.question_id = $1::uuid
		  ORDER BY c.created_at, c.id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("content: list comments: %w", err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("content: scan comment: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("content: list comments: %w", err)
	}
	return out, nil
}

// Vote records userID's vote on answerID. Repeating the standing vote
// withdraws it; the opposite vote replaces it. Tallies are recounted in the
// same transaction.
func (r *PGRepository) Vote(ctx context.Context, userID, answerID string, v VoteType) (VoteResult, error) {
	res := VoteResult{AnswerID: answerID}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx,
			`SELECT vote_type FROM votes WHERE user_id = $1::uuid AND answer_id = $2::uuid FOR UPDATE`,
			userID, answerID).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			_, err = tx.Exec(ctx,
				`INSERT INTO votes (user_id, answer_id, vote_type) VALUES ($1::uuid, $2::uuid, $3)`,
				userID, answerID, string(v))
			res.Current = v
		case err != nil:
		case VoteType(current) == v:
			_, err = tx.Exec(ctx, `DELETE FROM votes WHERE user_id = $1::uuid AND answer_id = $2::uuid`, userID, answerID)
		default:
			_, err = tx.Exec(ctx,
				`UPDATE votes SET vote_type = $3, created_at = NOW() WHERE user_id = $1::uuid AND answer_id = $2::uuid`,
				userID, answerID, string(v))
			res.Current = v
		}
		if err != nil {
			return fmt.Errorf("content: record vote: %w", err)
		}
		err = tx.QueryRow(ctx,
			`UPDATE answers SET
				upvotes = (SELECT COUNT(*) FROM votes WHERE answer_id = $1::uuid AND vote_type = 'upvote'),
				downvotes = (SELECT COUNT(*) FROM votes WHERE answer_id = $1::uuid AND vote_type = 'downvote')
			 WHERE id = $1::uuid RETURNING upvotes, downvotes`, answerID,
		).Scan(&res.Upvotes, &res.Downvotes)
		if err != nil {
			return notFound(err, "answer")
		}
		return nil
	})
	return res, err
}

func (r *PGRepository) delete(ctx context.Context, query, id string) error {
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("content: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)

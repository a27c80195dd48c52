package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"coursehub.org/internal/auth"
	"coursehub.org/internal/ids"
	"coursehub.org/internal/notify"
	"coursehub.org/internal/obs"
)

const (
	defaultStoreTimeout  = 3 * time.Second
	defaultNotifyTimeout = 10 * time.Second

	// MinRating and MaxRating bound review ratings.
	MinRating = 1
	MaxRating = 5
)

// Invalidator drops cached copies of a course after it changed.
type Invalidator interface {
	Invalidate(ctx context.Context, courseID string) error
}

// Engine applies nested mutations to course aggregates. Every mutation loads
// the whole document, changes it in memory, saves it back and invalidates the
// cache before reporting success. Two concurrent mutations of one course are
// last-write-wins at document granularity.
type Engine struct {
	repo          Repository
	cache         Invalidator
	notifier      notify.Sender
	storeTimeout  time.Duration
	notifyTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

// Option configures an Engine.
type Option func(*Engine)

func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) { e.cache = inv }
}

func WithNotifier(s notify.Sender) Option {
	return func(e *Engine) { e.notifier = s }
}

func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires an engine around repo.
func NewEngine(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:          repo,
		storeTimeout:  defaultStoreTimeout,
		notifyTimeout: defaultNotifyTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
		newID:         ids.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Content returns the full content list of a course the principal is enrolled in.
func (e *Engine) Content(ctx context.Context, p auth.Principal, courseID string) ([]ContentItem, error) {
	if !p.IsEnrolled(courseID) {
		return nil, ErrNotEnrolled
	}
	c, err := e.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return c.Content, nil
}

// PostQuestion opens a new question thread on a content item.
func (e *Engine) PostQuestion(ctx context.Context, p auth.Principal, courseID, contentID, question string) (*Course, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	return e.mutate(ctx, courseID, func(c *Course) error {
		item, err := c.ContentItem(contentID)
		if err != nil {
			return err
		}
		item.Questions = append(item.Questions, QuestionThread{
			ID:        e.newID(),
			Author:    AuthorFrom(p),
			Question:  question,
			Replies:   []Reply{},
			CreatedAt: e.now().UTC(),
		})
		return nil
	})
}

// PostAnswer appends a reply to a question thread. When the answerer is not
// the question's author, the author is emailed. A delivery failure is reported
// as ErrNotificationFailed alongside the already persisted course.
func (e *Engine) PostAnswer(ctx context.Context, p auth.Principal, courseID, contentID, questionID, answer string) (*Course, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	var (
		asker Author
		title string
	)
	c, err := e.mutate(ctx, courseID, func(c *Course) error {
		item, err := c.ContentItem(contentID)
		if err != nil {
			return err
		}
		q, err := item.Question(questionID)
		if err != nil {
			return err
		}
		q.Replies = append(q.Replies, Reply{
			ID:        e.newID(),
			Author:    AuthorFrom(p),
			Text:      answer,
			CreatedAt: e.now().UTC(),
		})
		asker, title = q.Author, item.Title
		return nil
	})
	if err != nil {
		return nil, err
	}
	if asker.ID == p.ID {
		return c, nil
	}
	if err := e.notify(ctx, notify.Message{
		To:       asker.Email,
		Subject:  "Question Reply",
		Template: notify.QuestionReply,
		Data:     map[string]any{"name": asker.Name, "title": title},
	}); err != nil {
		return c, err
	}
	return c, nil
}

// PostReview adds a rated review from an enrolled principal and recomputes
// the course's average rating.
func (e *Engine) PostReview(ctx context.Context, p auth.Principal, courseID string, rating int, comment string) (*Course, error) {
	if !p.IsEnrolled(courseID) {
		return nil, ErrNotEnrolled
	}
	if rating < MinRating || rating > MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidInput, MinRating, MaxRating)
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, fmt.Errorf("%w: review is required", ErrInvalidInput)
	}
	return e.mutate(ctx, courseID, func(c *Course) error {
		c.Reviews = append(c.Reviews, Review{
			ID:        e.newID(),
			Author:    AuthorFrom(p),
			Rating:    rating,
			Comment:   comment,
			Replies:   []Reply{},
			CreatedAt: e.now().UTC(),
		})
		c.RecomputeRating()
		return nil
	})
}

// ReplyToReview appends a reply to an existing review.
func (e *Engine) ReplyToReview(ctx context.Context, p auth.Principal, courseID, reviewID, comment string) (*Course, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, fmt.Errorf("%w: reply is required", ErrInvalidInput)
	}
	return e.mutate(ctx, courseID, func(c *Course) error {
		r, err := c.Review(reviewID)
		if err != nil {
			return err
		}
		if r.Replies == nil {
			r.Replies = []Reply{}
		}
		r.Replies = append(r.Replies, Reply{
			ID:        e.newID(),
			Author:    AuthorFrom(p),
			Text:      comment,
			CreatedAt: e.now().UTC(),
		})
		c.RecomputeRating()
		return nil
	})
}

// Create stores a new course built from draft. Every identity in the draft is
// replaced by a server-assigned one; reviews and counters start empty.
func (e *Engine) Create(ctx context.Context, draft Course) (*Course, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	now := e.now().UTC()
	c := draft.Clone()
	c.ID = e.newID()
	c.Reviews = []Review{}
	c.AverageRating = 0
	c.Purchased = 0
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Content == nil {
		c.Content = []ContentItem{}
	}
	for i := range c.Content {
		e.assignContentIDs(&c.Content[i])
		c.Content[i].Questions = []QuestionThread{}
	}
	if err := c.CheckIdentities(); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.repo.Create(sctx, c); err != nil {
		return nil, e.storeFailure("create", c.ID, err)
	}
	if err := e.invalidate(ctx, c.ID); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Update replaces the editable fields of a course. Content items whose id
// matches an existing item keep their question threads; other items are new.
// Reviews, rating and purchase count are never taken from the draft.
func (e *Engine) Update(ctx context.Context, courseID string, draft Course) (*Course, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	return e.mutate(ctx, courseID, func(c *Course) error {
		existing := make(map[string][]QuestionThread, len(c.Content))
		for _, ci := range c.Content {
			existing[ci.ID] = ci.Questions
		}
		next := draft.Clone()
		content := next.Content
		if content == nil {
			content = []ContentItem{}
		}
		seen := make(map[string]struct{}, len(content))
		for i := range content {
			item := &content[i]
			if qs, ok := existing[item.ID]; ok && item.ID != "" {
				if _, dup := seen[item.ID]; !dup {
					seen[item.ID] = struct{}{}
					item.Questions = qs
					item.Links = e.withLinkIDs(item.Links)
					continue
				}
			}
			e.assignContentIDs(item)
			item.Questions = []QuestionThread{}
		}

		c.Name = next.Name
		c.Description = next.Description
		c.Price = next.Price
		c.EstimatedPrice = next.EstimatedPrice
		c.Thumbnail = next.Thumbnail
		c.Tags = next.Tags
		c.Level = next.Level
		c.DemoURL = next.DemoURL
		c.Benefits = next.Benefits
		c.Prerequisites = next.Prerequisites
		c.Content = content
		return nil
	})
}

func (e *Engine) assignContentIDs(item *ContentItem) {
	item.ID = e.newID()
	for i := range item.Links {
		item.Links[i].ID = e.newID()
	}
}

func (e *Engine) withLinkIDs(links []Link) []Link {
	seen := make(map[string]struct{}, len(links))
	for i := range links {
		if _, dup := seen[links[i].ID]; links[i].ID == "" || dup {
			links[i].ID = e.newID()
		}
		seen[links[i].ID] = struct{}{}
	}
	return links
}

func validateDraft(d Course) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if d.Price < 0 || d.EstimatedPrice < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	for _, ci := range d.Content {
		if strings.TrimSpace(ci.Title) == "" {
			return fmt.Errorf("%w: content title is required", ErrInvalidInput)
		}
		if ci.VideoLength < 0 {
			return fmt.Errorf("%w: video length must not be negative", ErrInvalidInput)
		}
	}
	return nil
}

// mutate is the load, change, save, invalidate sequence shared by every write.
func (e *Engine) mutate(ctx context.Context, courseID string, change func(c *Course) error) (*Course, error) {
	c, err := e.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := change(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = e.now().UTC()
	if err := c.CheckIdentities(); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.repo.Save(sctx, c); err != nil {
		return nil, e.storeFailure("save", courseID, err)
	}
	if err := e.invalidate(ctx, courseID); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (e *Engine) load(ctx context.Context, courseID string) (*Course, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, ErrAggregateNotFound
	}
	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	c, err := e.repo.FindByID(sctx, courseID)
	if err != nil {
		return nil, e.storeFailure("load", courseID, err)
	}
	return c, nil
}

func (e *Engine) invalidate(ctx context.Context, courseID string) error {
	if e.cache == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.cache.Invalidate(sctx, courseID); err != nil {
		e.logger.Error("cache invalidation failed after save", zap.String("course_id", courseID), zap.Error(err))
		return fmt.Errorf("%w: invalidate %s: %v", ErrStoreUnavailable, courseID, err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, msg notify.Message) error {
	if e.notifier == nil {
		return nil
	}
	nctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()
	err := e.notifier.Send(nctx, msg)
	obs.NotificationSent(msg.Template, err)
	if err != nil {
		e.logger.Warn("notification failed", zap.String("template", msg.Template), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

// storeFailure keeps not-found and identity errors and folds everything else
// into ErrStoreUnavailable.
func (e *Engine) storeFailure(op, courseID string, err error) error {
	if errors.Is(err, ErrAggregateNotFound) || errors.Is(err, ErrIdentityConflict) {
		return err
	}
	e.logger.Error("course repository failure", zap.String("op", op), zap.String("course_id", courseID), zap.Error(err))
	return fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, op, courseID, err)
}

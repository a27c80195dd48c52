// Package course holds the course aggregate and the engine that appends
// questions, answers, reviews and review replies to it.
package course

import (
	"fmt"
	"slices"
	"time"

	"coursehub.org/internal/auth"
)

// Author is the principal snapshot embedded in nested entities.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// AuthorFrom copies the identifying fields of p.
func AuthorFrom(p auth.Principal) Author {
	return Author{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
}

type Media struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type Point struct {
	Title string `json:"title"`
}

type Link struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Reply struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type QuestionThread struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Question  string    `json:"question"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

type ContentItem struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	VideoURL     string           `json:"video_url,omitempty"`
	VideoSection string           `json:"video_section"`
	VideoLength  int              `json:"video_length"`
	VideoPlayer  string           `json:"video_player"`
	Links        []Link           `json:"links,omitempty"`
	Suggestion   string           `json:"suggestion,omitempty"`
	Questions    []QuestionThread `json:"questions,omitempty"`
}

// Course is the aggregate root. It is persisted and cached as one document.
type Course struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Price          float64       `json:"price"`
	EstimatedPrice float64       `json:"estimated_price,omitempty"`
	Thumbnail      Media         `json:"thumbnail"`
	Tags           string        `json:"tags"`
	Level          string        `json:"level"`
	DemoURL        string        `json:"demo_url"`
	Benefits       []Point       `json:"benefits"`
	Prerequisites  []Point       `json:"prerequisites"`
	Content        []ContentItem `json:"content"`
	Reviews        []Review      `json:"reviews"`
	AverageRating  float64       `json:"average_rating"`
	Purchased      int           `json:"purchased"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ContentItem resolves a content item by exact id.
func (c *Course) ContentItem(id string) (*ContentItem, error) {
	i := slices.IndexFunc(c.Content, func(ci ContentItem) bool { return ci.ID == id })
	if id == "" || i < 0 {
		return nil, &EntityNotFoundError{Kind: KindContent, ID: id}
	}
	return &c.Content[i], nil
}

// Question resolves a question thread by exact id.
func (ci *ContentItem) Question(id string) (*QuestionThread, error) {
	i := slices.IndexFunc(ci.Questions, func(q QuestionThread) bool { return q.ID == id })
	if id == "" || i < 0 {
		return nil, &EntityNotFoundError{Kind: KindQuestion, ID: id}
	}
	return &ci.Questions[i], nil
}

// Review resolves a review by exact id.
func (c *Course) Review(id string) (*Review, error) {
	i := slices.IndexFunc(c.Reviews, func(r Review) bool { return r.ID == id })
	if id == "" || i < 0 {
		return nil, &EntityNotFoundError{Kind: KindReview, ID: id}
	}
	return &c.Reviews[i], nil
}

// RecomputeRating sets AverageRating from the current reviews.
func (c *Course) RecomputeRating() {
	c.AverageRating = AverageRating(c.Reviews)
}

// AverageRating is the arithmetic mean of the ratings, 0 for no reviews.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

// CheckIdentities verifies that every nested entity has an id and that no two
// siblings share one.
func (c *Course) CheckIdentities() error {
	if c.ID == "" {
		return fmt.Errorf("%w: course without id", ErrIdentityConflict)
	}
	content := newIDSet("content")
	for _, ci := range c.Content {
		if err := content.add(ci.ID); err != nil {
			return err
		}
		links := newIDSet("link")
		for _, l := range ci.Links {
			if err := links.add(l.ID); err != nil {
				return err
			}
		}
		questions := newIDSet("question")
		for _, q := range ci.Questions {
			if err := questions.add(q.ID); err != nil {
				return err
			}
			if err := checkReplies(q.Replies); err != nil {
				return err
			}
		}
	}
	reviews := newIDSet("review")
	for _, r := range c.Reviews {
		if err := reviews.add(r.ID); err != nil {
			return err
		}
		if err := checkReplies(r.Replies); err != nil {
			return err
		}
	}
	return nil
}

func checkReplies(replies []Reply) error {
	set := newIDSet("reply")
	for _, r := range replies {
		if err := set.add(r.ID); err != nil {
			return err
		}
	}
	return nil
}

type idSet struct {
	kind string
	seen map[string]struct{}
}

func newIDSet(kind string) *idSet {
	return &idSet{kind: kind, seen: make(map[string]struct{})}
}

func (s *idSet) add(id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s without id", ErrIdentityConflict, s.kind)
	}
	if _, ok := s.seen[id]; ok {
		return fmt.Errorf("%w: %s %s", ErrIdentityConflict, s.kind, id)
	}
	s.seen[id] = struct{}{}
	return nil
}

// Clone returns a deep copy of c.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	out := *c
	out.Benefits = slices.Clone(c.Benefits)
	out.Prerequisites = slices.Clone(c.Prerequisites)
	if c.Content != nil {
		out.Content = make([]ContentItem, len(c.Content))
		for i, ci := range c.Content {
			out.Content[i] = ci.clone()
		}
	}
	if c.Reviews != nil {
		out.Reviews = make([]Review, len(c.Reviews))
		for i, r := range c.Reviews {
			r.Replies = slices.Clone(r.Replies)
			out.Reviews[i] = r
		}
	}
	return &out
}

func (ci ContentItem) clone() ContentItem {
	ci.Links = slices.Clone(ci.Links)
	if ci.Questions != nil {
		qs := make([]QuestionThread, len(ci.Questions))
		for i, q := range ci.Questions {
			q.Replies = slices.Clone(q.Replies)
			qs[i] = q
		}
		ci.Questions = qs
	}
	return ci
}

// Preview is the public view of c: content items keep their outline but lose
// video URLs, links, suggestions and question threads.
func (c *Course) Preview() *Course {
	out := c.Clone()
	for i := range out.Content {
		out.Content[i].VideoURL = ""
		out.Content[i].Links = nil
		out.Content[i].Suggestion = ""
		out.Content[i].Questions = nil
	}
	for i := range out.Reviews {
		out.Reviews[i].Author.Email = ""
		for j := range out.Reviews[i].Replies {
			out.Reviews[i].Replies[j].Author.Email = ""
		}
	}
	return out
}

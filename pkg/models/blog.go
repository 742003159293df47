package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Author is the composite author name stored with a post
type Author struct {
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
}

// String renders the author the way the API exposes it
func (a Author) String() string {
	return a.FirstName + a.LastName
}

// BlogPost is a document object for blog persistence
type BlogPost struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Title   string             `bson:"title"`
	Content string             `bson:"content"`
	Author  Author             `bson:"author"`
	Created time.Time          `bson:"created"`
}

// PostView is the API representation of a post
type PostView struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
}

// Serialize converts the stored document into its API representation
func (p *BlogPost) Serialize() *PostView {
	return &PostView{
		ID:      p.ID.Hex(),
		Title:   p.Title,
		Content: p.Content,
		Author:  p.Author.String(),
		Created: p.Created,
	}
}

// PostList is the body of GET /posts
type PostList struct {
	Posts []*PostView `json:"posts"`
}

// NewPostList serializes posts, always yielding a non-nil slice
func NewPostList(posts []*BlogPost) *PostList {
	views := make([]*PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, p.Serialize())
	}
	return &PostList{Posts: views}
}

// NewPost is the body of POST /posts
type NewPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  Author `json:"author"`
}

// Post builds the document to insert. Created is stamped by the caller.
func (n *NewPost) Post() *BlogPost {
	return &BlogPost{
		Title:   n.Title,
		Content: n.Content,
		Author:  n.Author,
	}
}

// PostUpdate is the body of PUT /posts/{id}. Nil fields are left untouched.
type PostUpdate struct {
	ID      string  `json:"id,omitempty"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *Author `json:"author,omitempty"`
}

// Empty reports whether the update carries no updatable field
func (u *PostUpdate) Empty() bool {
	return u.Title == nil && u.Content == nil && u.Author == nil
}

// Apply merges the update into p
func (u *PostUpdate) Apply(p *BlogPost) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Author != nil {
		p.Author = *u.Author
	}
}

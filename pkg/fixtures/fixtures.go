// Package fixtures generates fake blog posts for seeding a store.
package fixtures

import (
	"context"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/models"
)

// Generator produces well-formed fake posts. Not safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator; seed 0 picks a random seed
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Author returns a random author with both name parts set
func (g *Generator) Author() models.Author {
	return models.Author{
		FirstName: g.faker.FirstName(),
		LastName:  g.faker.LastName(),
	}
}

// Title returns a short title without trailing punctuation
func (g *Generator) Title() string {
	return strings.TrimSuffix(g.faker.Sentence(4), ".")
}

// Content returns a couple of paragraphs of filler text
func (g *Generator) Content() string {
	return g.faker.Paragraph(2, 3, 12, "\n\n")
}

// NewPost returns a request body for POST /posts
func (g *Generator) NewPost() *models.NewPost {
	return &models.NewPost{
		Title:   g.Title(),
		Content: g.Content(),
		Author:  g.Author(),
	}
}

// Posts returns n unsaved posts
func (g *Generator) Posts(n int) []*models.BlogPost {
	posts := make([]*models.BlogPost, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, g.NewPost().Post())
	}
	return posts
}

// Seed inserts n generated posts into store
func (g *Generator) Seed(ctx context.Context, store pkg.PostStore, n int) ([]*models.BlogPost, error) {
	return store.InsertMany(ctx, g.Posts(n))
}

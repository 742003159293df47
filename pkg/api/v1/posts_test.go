package v1_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/solorad/blog-api/pkg"
	"github.com/solorad/blog-api/pkg/apitest"
	"github.com/solorad/blog-api/pkg/models"
	"github.com/solorad/blog-api/pkg/storage"
)

var postKeys = []string{"id", "author", "content", "title", "created"}

type gatewayError struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func expectStatus(resp *http.Response, code int) {
	GinkgoHelper()
	if resp.StatusCode != code {
		body, _ := apitest.ReadBody(resp)
		Fail("expected status " + http.StatusText(code) + ", got " + resp.Status + ": " + string(body))
	}
}

func storeCount() int64 {
	GinkgoHelper()
	count, err := h.Store.Count(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return count
}

func existingPost() *models.BlogPost {
	GinkgoHelper()
	post, err := h.Store.FindOne(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return post
}

var _ = Describe("Blog API", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("GET /posts", func() {
		BeforeEach(func() {
			_, err := h.Seed(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return all blog posts", func() {
			resp, err := h.Do(http.MethodGet, "/posts", nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)

			var body models.PostList
			Expect(apitest.DecodeJSON(resp, &body)).To(Succeed())
			Expect(len(body.Posts)).To(BeNumerically(">=", 1))
			Expect(body.Posts).To(HaveLen(int(storeCount())))
		})

		It("should return blog posts with correct fields", func() {
			resp, err := h.Do(http.MethodGet, "/posts", nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))

			var body struct {
				Posts []map[string]interface{} `json:"posts"`
			}
			Expect(apitest.DecodeJSON(resp, &body)).To(Succeed())
			Expect(body.Posts).NotTo(BeEmpty())
			for _, post := range body.Posts {
				for _, key := range postKeys {
					Expect(post).To(HaveKey(key))
				}
			}

			first := body.Posts[0]
			stored, err := h.Store.FindByID(ctx, first["id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(first["id"]).To(Equal(stored.ID.Hex()))
			Expect(first["title"]).To(Equal(stored.Title))
			Expect(first["author"]).To(Equal(stored.Author.String()))
			Expect(first["content"]).To(Equal(stored.Content))
		})

		It("should return an empty list when there are no posts", func() {
			Expect(h.Reset(ctx)).To(Succeed())

			resp, err := h.Do(http.MethodGet, "/posts", nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)

			body, err := apitest.ReadBody(resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(MatchJSON(`{"posts": []}`))
		})
	})

	Describe("GET /posts/{id}", func() {
		It("should return a single post", func() {
			posts, err := h.Seed(ctx, 3)
			Expect(err).NotTo(HaveOccurred())

			resp, err := h.Do(http.MethodGet, "/posts/"+posts[1].ID.Hex(), nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)

			var view models.PostView
			Expect(apitest.DecodeJSON(resp, &view)).To(Succeed())
			Expect(view.ID).To(Equal(posts[1].ID.Hex()))
			Expect(view.Title).To(Equal(posts[1].Title))
			Expect(view.Author).To(Equal(posts[1].Author.String()))
		})

		It("should report an unknown id as not found", func() {
			resp, err := h.Do(http.MethodGet, "/posts/"+primitive.NewObjectID().Hex(), nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNotFound)

			var body gatewayError
			Expect(apitest.DecodeJSON(resp, &body)).To(Succeed())
			Expect(body.Message).To(ContainSubstring("not found"))
		})
	})

	Describe("POST /posts", func() {
		It("should create a new blog post", func() {
			newPost := h.Fixtures().NewPost()

			resp, err := h.Do(http.MethodPost, "/posts", newPost)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusCreated)
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))

			var raw map[string]interface{}
			Expect(apitest.DecodeJSON(resp, &raw)).To(Succeed())
			for _, key := range postKeys {
				Expect(raw).To(HaveKey(key))
			}
			Expect(raw["title"]).To(Equal(newPost.Title))
			Expect(raw["author"]).To(Equal(newPost.Author.FirstName + newPost.Author.LastName))
			Expect(raw["content"]).To(Equal(newPost.Content))

			stored, err := h.Store.FindByID(ctx, raw["id"].(string))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Title).To(Equal(newPost.Title))
			Expect(stored.Content).To(Equal(newPost.Content))
			Expect(stored.Author.FirstName).To(Equal(newPost.Author.FirstName))
			Expect(stored.Author.LastName).To(Equal(newPost.Author.LastName))
		})

		It("should render the author as the concatenated name", func() {
			resp, err := h.Do(http.MethodPost, "/posts",
				`{"title":"T","content":"C","author":{"firstName":"A","lastName":"B"}}`)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusCreated)

			var view models.PostView
			Expect(apitest.DecodeJSON(resp, &view)).To(Succeed())
			Expect(view.Author).To(Equal("AB"))

			stored, err := h.Store.FindByID(ctx, view.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Title).To(Equal("T"))
			Expect(stored.Content).To(Equal("C"))
			Expect(stored.Author).To(Equal(models.Author{FirstName: "A", LastName: "B"}))
			Expect(stored.Created).To(BeTemporally("==", view.Created))
			Expect(stored.Created).To(BeTemporally("~", time.Now(), time.Minute))
		})

		DescribeTable("should reject a post missing a required field",
			func(body string) {
				resp, err := h.Do(http.MethodPost, "/posts", body)
				Expect(err).NotTo(HaveOccurred())
				expectStatus(resp, http.StatusBadRequest)

				var e gatewayError
				Expect(apitest.DecodeJSON(resp, &e)).To(Succeed())
				Expect(e.Message).NotTo(BeEmpty())
				Expect(storeCount()).To(BeZero())
			},
			Entry("title", `{"content":"C","author":{"firstName":"A","lastName":"B"}}`),
			Entry("content", `{"title":"T","author":{"firstName":"A","lastName":"B"}}`),
			Entry("author", `{"title":"T","content":"C"}`),
			Entry("author.firstName", `{"title":"T","content":"C","author":{"lastName":"B"}}`),
			Entry("author.lastName", `{"title":"T","content":"C","author":{"firstName":"A"}}`),
			Entry("blank title", `{"title":"","content":"C","author":{"firstName":"A","lastName":"B"}}`),
			Entry("malformed JSON", `{"title":"T",`),
		)

		It("should refuse a body over the size limit", func() {
			body := `{"title":"T","content":"` + strings.Repeat("a", 1<<20) + `","author":{"firstName":"A","lastName":"B"}}`

			resp, err := h.Do(http.MethodPost, "/posts", body)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusRequestEntityTooLarge)

			var e gatewayError
			Expect(apitest.DecodeJSON(resp, &e)).To(Succeed())
			Expect(e.Code).To(Equal(8))
			Expect(e.Message).To(ContainSubstring("exceeds"))
			Expect(storeCount()).To(BeZero())
		})
	})

	Describe("PUT /posts/{id}", func() {
		BeforeEach(func() {
			_, err := h.Seed(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should update fields", func() {
			post := existingPost()
			updateData := map[string]interface{}{
				"id":      post.ID.Hex(),
				"title":   "Blogs Rule",
				"content": "they are so fun to write!",
				"author": map[string]string{
					"firstName": "Alexander",
					"lastName":  "Dumas",
				},
			}

			resp, err := h.Do(http.MethodPut, "/posts/"+post.ID.Hex(), updateData)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)

			var view models.PostView
			Expect(apitest.DecodeJSON(resp, &view)).To(Succeed())

			stored, err := h.Store.FindByID(ctx, post.ID.Hex())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Title).To(Equal("Blogs Rule"))
			Expect(stored.Content).To(Equal("they are so fun to write!"))
			Expect(stored.Author).To(Equal(models.Author{FirstName: "Alexander", LastName: "Dumas"}))
			Expect(stored.ID).To(Equal(post.ID))
			Expect(stored.Created).To(BeTemporally("==", post.Created))
			Expect(view.ID).To(Equal(stored.ID.Hex()))
			Expect(view.Title).To(Equal(stored.Title))
			Expect(view.Content).To(Equal(stored.Content))
			Expect(view.Author).To(Equal("AlexanderDumas"))
			Expect(view.Created).To(BeTemporally("==", stored.Created))
		})

		It("should leave fields absent from the body untouched", func() {
			post := existingPost()

			resp, err := h.Do(http.MethodPut, "/posts/"+post.ID.Hex(), map[string]string{"title": "Only the title"})
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusOK)
			resp.Body.Close()

			stored, err := h.Store.FindByID(ctx, post.ID.Hex())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Title).To(Equal("Only the title"))
			Expect(stored.Content).To(Equal(post.Content))
			Expect(stored.Author).To(Equal(post.Author))
			Expect(stored.Created).To(BeTemporally("==", post.Created))
		})

		It("should reject a body id that does not match the path", func() {
			post := existingPost()
			body := map[string]string{"id": primitive.NewObjectID().Hex(), "title": "Blogs Rule"}

			resp, err := h.Do(http.MethodPut, "/posts/"+post.ID.Hex(), body)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusBadRequest)
			resp.Body.Close()

			stored, err := h.Store.FindByID(ctx, post.ID.Hex())
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Title).To(Equal(post.Title))
		})

		It("should reject an author with a single name part", func() {
			post := existingPost()
			body := map[string]interface{}{"author": map[string]string{"firstName": "Alexander"}}

			resp, err := h.Do(http.MethodPut, "/posts/"+post.ID.Hex(), body)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusBadRequest)
			resp.Body.Close()
		})

		It("should report a missing post as not found", func() {
			id := primitive.NewObjectID().Hex()
			resp, err := h.Do(http.MethodPut, "/posts/"+id, map[string]string{"id": id, "title": "Blogs Rule"})
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNotFound)
			resp.Body.Close()
		})
	})

	Describe("DELETE /posts/{id}", func() {
		BeforeEach(func() {
			_, err := h.Seed(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should delete a post by id", func() {
			post := existingPost()

			resp, err := h.Do(http.MethodDelete, "/posts/"+post.ID.Hex(), nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNoContent)
			body, err := apitest.ReadBody(resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(BeEmpty())

			_, err = h.Store.FindByID(ctx, post.ID.Hex())
			Expect(err).To(MatchError(pkg.ErrPostNotFound))
			Expect(storeCount()).To(BeEquivalentTo(9))
		})

		It("should report a repeated delete as not found", func() {
			post := existingPost()
			path := "/posts/" + post.ID.Hex()

			resp, err := h.Do(http.MethodDelete, path, nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNoContent)
			resp.Body.Close()

			resp, err = h.Do(http.MethodDelete, path, nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNotFound)
			resp.Body.Close()

			resp, err = h.Do(http.MethodGet, path, nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusNotFound)
			resp.Body.Close()
		})
	})

	Describe("store failures", func() {
		var broken *apitest.Harness

		BeforeEach(func() {
			dir, err := os.MkdirTemp("", "blog-api-broken-")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			store, err := storage.NewBoltStore(filepath.Join(dir, "blog.db"))
			Expect(err).NotTo(HaveOccurred())
			broken = apitest.New(store)
			Expect(broken.Start(ctx)).To(Succeed())
			DeferCleanup(broken.Stop, context.Background())

			Expect(store.Close(ctx)).To(Succeed())
		})

		It("should report an unavailable store as an internal error", func() {
			resp, err := broken.Do(http.MethodGet, "/posts", nil)
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusInternalServerError)

			var e gatewayError
			Expect(apitest.DecodeJSON(resp, &e)).To(Succeed())
			Expect(e.Code).To(Equal(13))
		})

		It("should not report a write to an unavailable store as created", func() {
			resp, err := broken.Do(http.MethodPost, "/posts", h.Fixtures().NewPost())
			Expect(err).NotTo(HaveOccurred())
			expectStatus(resp, http.StatusInternalServerError)
			resp.Body.Close()
		})
	})
})

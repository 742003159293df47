// Package v1 exposes the blog service as a JSON REST API on a grpc-gateway mux.
package v1

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/runtime"
	"github.com/solorad/blog-api/pkg/blog"
	"github.com/solorad/blog-api/pkg/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 1 << 20

var (
	pattern_BlogService_ListPosts_0  = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0}, []string{"posts"}, "", runtime.AssumeColonVerbOpt(true)))
	pattern_BlogService_CreatePost_0 = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0}, []string{"posts"}, "", runtime.AssumeColonVerbOpt(true)))
	pattern_BlogService_GetPost_0    = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 1, 0, 4, 1, 5, 1}, []string{"posts", "id"}, "", runtime.AssumeColonVerbOpt(true)))
	pattern_BlogService_UpdatePost_0 = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 1, 0, 4, 1, 5, 1}, []string{"posts", "id"}, "", runtime.AssumeColonVerbOpt(true)))
	pattern_BlogService_DeletePost_0 = runtime.MustPattern(runtime.NewPattern(1, []int{2, 0, 1, 0, 4, 1, 5, 1}, []string{"posts", "id"}, "", runtime.AssumeColonVerbOpt(true)))
)

// Marshaler is the codec used for every request and response body
var Marshaler runtime.Marshaler = &runtime.JSONPb{OrigName: true, EmitDefaults: true}

// NewServeMux returns a gateway mux using Marshaler for all content types
func NewServeMux(opts ...runtime.ServeMuxOption) *runtime.ServeMux {
	opts = append([]runtime.ServeMuxOption{runtime.WithMarshalerOption(runtime.MIMEWildcard, Marshaler)}, opts...)
	return runtime.NewServeMux(opts...)
}

// RegisterBlogServiceHandler registers the /posts routes on mux
func RegisterBlogServiceHandler(mux *runtime.ServeMux, svc *blog.Service) {
	h := &handler{mux: mux, svc: svc}
	mux.Handle(http.MethodGet, pattern_BlogService_ListPosts_0, h.listPosts)
	mux.Handle(http.MethodPost, pattern_BlogService_CreatePost_0, h.createPost)
	mux.Handle(http.MethodGet, pattern_BlogService_GetPost_0, h.getPost)
	mux.Handle(http.MethodPut, pattern_BlogService_UpdatePost_0, h.updatePost)
	mux.Handle(http.MethodDelete, pattern_BlogService_DeletePost_0, h.deletePost)
}

type handler struct {
	mux *runtime.ServeMux
	svc *blog.Service
}

func (h *handler) listPosts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	posts, err := h.svc.ListPosts(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	h.writeJSON(r.Context(), w, r, http.StatusOK, models.NewPostList(posts))
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	post, err := h.svc.GetPost(r.Context(), pathParams["id"])
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	h.writeJSON(r.Context(), w, r, http.StatusOK, post.Serialize())
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	req, err := models.ParseNewPost(body)
	if err != nil {
		h.writeError(r.Context(), w, r, blog.Status("decode post", err))
		return
	}
	post, err := h.svc.CreatePost(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	h.writeJSON(r.Context(), w, r, http.StatusCreated, post.Serialize())
}

func (h *handler) updatePost(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	update, err := models.ParsePostUpdate(body)
	if err != nil {
		h.writeError(r.Context(), w, r, blog.Status("decode post update", err))
		return
	}
	post, err := h.svc.UpdatePost(r.Context(), pathParams["id"], update)
	if err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	h.writeJSON(r.Context(), w, r, http.StatusOK, post.Serialize())
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if err := h.svc.DeletePost(r.Context(), pathParams["id"]); err != nil {
		h.writeError(r.Context(), w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return nil, status.Errorf(codes.ResourceExhausted, "request body exceeds %d bytes", tooLarge.Limit)
	case err != nil:
		return nil, status.Errorf(codes.InvalidArgument, "read request body: %v", err)
	}
	return body, nil
}

func (h *handler) writeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	data, err := Marshaler.Marshal(v)
	if err != nil {
		h.writeError(ctx, w, r, status.Errorf(codes.Internal, "encode response: %v", err))
		return
	}
	w.Header().Set("Content-Type", Marshaler.ContentType())
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// writeError renders err with the gateway error body, taking the HTTP status from its gRPC code.
// ResourceExhausted only comes from an oversized body here, so it is sent as 413, not 429.
func (h *handler) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	if status.Code(err) == codes.ResourceExhausted {
		w = statusWriter{ResponseWriter: w, code: http.StatusRequestEntityTooLarge}
	}
	runtime.HTTPError(ctx, h.mux, Marshaler, w, r, err)
}

// statusWriter replaces the status code chosen by the gateway
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w statusWriter) WriteHeader(int) {
	w.ResponseWriter.WriteHeader(w.code)
}

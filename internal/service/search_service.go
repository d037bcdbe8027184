package service

import (
	"encoding/json"
	"html"
	"log"
	"strings"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/openshelf/openshelf/internal/model"
)

// SearchService keeps the Meilisearch posts index in sync with the database
// and serves full-text queries over active listings.
type SearchService interface {
	IndexPost(post *model.Post) error
	DeletePost(id string) error
	SearchPosts(query string, limit int) ([]PostSearchHit, error)
}

type PostSearchHit struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Category string `json:"category"`
}

type searchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *searchService) initIndexes() {
	filterableAttrs := []string{"status", "category", "tags"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index("posts").UpdateFilterableAttributes(&filterableInterface); err != nil {
		log.Printf("Failed to update posts filterable attributes: %v", err)
	}

	sortableAttrs := []string{"created_at", "views", "upvotes"}
	if _, err := s.client.Index("posts").UpdateSortableAttributes(&sortableAttrs); err != nil {
		log.Printf("Failed to update posts sortable attributes: %v", err)
	}
}

type meiliPostDoc struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	Views       int      `json:"views"`
	Upvotes     int      `json:"upvotes"`
	CreatedAt   int64    `json:"created_at"`
	Author      string   `json:"author"`
}

func (s *searchService) cleanContentForIndex(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</div>", " ")

	sanitized := s.sanitizer.Sanitize(content)
	cleanText := html.UnescapeString(sanitized)

	return strings.Join(strings.Fields(cleanText), " ")
}

func (s *searchService) IndexPost(post *model.Post) error {
	doc := meiliPostDoc{
		ID:          post.ID.String(),
		Title:       post.Title,
		Slug:        post.Slug,
		Description: s.cleanContentForIndex(post.Description),
		Category:    post.Category,
		Tags:        post.Tags,
		Status:      post.Status,
		Views:       post.Views,
		Upvotes:     post.Upvotes,
		CreatedAt:   post.CreatedAt.Unix(),
		Author:      post.Author.Username,
	}

	primaryKey := "id"
	_, err := s.client.Index("posts").AddDocuments([]meiliPostDoc{doc}, &primaryKey)
	return err
}

func (s *searchService) DeletePost(id string) error {
	_, err := s.client.Index("posts").DeleteDocument(id)
	return err
}

func (s *searchService) SearchPosts(query string, limit int) ([]PostSearchHit, error) {
	if limit <= 0 {
		limit = 20
	}

	// Only active listings are publicly searchable
	resp, err := s.client.Index("posts").Search(query, &meilisearch.SearchRequest{
		Filter: "status = active",
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}

	hits := make([]PostSearchHit, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		data, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		var hit PostSearchHit
		if err := json.Unmarshal(data, &hit); err != nil {
			continue
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

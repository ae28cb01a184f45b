package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bookworm/annotations-service/internal/app/annotations/entity"
	"bookworm/pkg/logger"
)

// CatalogClient клиент для Catalog Service (OpenLibrary)
// Используется только для дозаполнения снимка избранного,
// когда клиент не прислал title/cover/author
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient создает новый клиент каталога
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type workResponse struct {
	Title   string  `json:"title"`
	Covers  []int64 `json:"covers"`
	Authors []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

type authorResponse struct {
	Name string `json:"name"`
}

// GetBook получает снимок книги по ее work ID
// Имя автора - best effort: work без автора остается с пустым author_name
func (c *CatalogClient) GetBook(ctx context.Context, bookID string) (*entity.BookSnapshot, error) {
	url := fmt.Sprintf("%s/works/%s.json", c.baseURL, bookID)

	var work workResponse
	if err := c.getJSON(ctx, url, &work); err != nil {
		return nil, fmt.Errorf("failed to get work %s: %w", bookID, err)
	}

	snapshot := &entity.BookSnapshot{
		Title: work.Title,
	}
	if len(work.Covers) > 0 {
		snapshot.CoverID = work.Covers[0]
	}

	if len(work.Authors) > 0 && work.Authors[0].Author.Key != "" {
		var author authorResponse
		authorURL := fmt.Sprintf("%s%s.json", c.baseURL, work.Authors[0].Author.Key)
		if err := c.getJSON(ctx, authorURL, &author); err != nil {
			logger.Warn().Err(err).Str("book_id", bookID).Msg("Failed to fetch author name from catalog")
		} else {
			snapshot.AuthorName = author.Name
		}
	}

	return snapshot, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found")
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
)

const createItemMutation = `mutation ($boardId: ID!, $itemName: String!, $columnValues: JSON!) {
  create_item (board_id: $boardId, item_name: $itemName, column_values: $columnValues) { id }
}`

// BoardClient creates board items over a GraphQL API.
type BoardClient struct {
	endpoint string
	token    string
	boardID  string
	columns  []Column
	http     *http.Client
	logger   *slog.Logger
}

// BoardOption configures a BoardClient.
type BoardOption func(*BoardClient)

// WithBoardHTTPClient replaces the default HTTP client.
func WithBoardHTTPClient(c *http.Client) BoardOption {
	return func(b *BoardClient) { b.http = c }
}

// WithColumns replaces DefaultColumns.
func WithColumns(cols []Column) BoardOption {
	return func(b *BoardClient) { b.columns = cols }
}

// WithBoardLogger sets the logger.
func WithBoardLogger(l *slog.Logger) BoardOption {
	return func(b *BoardClient) { b.logger = l }
}

// NewBoardClient creates a client for endpoint. token is sent verbatim in
// the Authorization header.
func NewBoardClient(endpoint, token, boardID string, opts ...BoardOption) *BoardClient {
	b := &BoardClient{
		endpoint: endpoint,
		token:    token,
		boardID:  boardID,
		columns:  DefaultColumns,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		CreateItem *struct {
			ID string `json:"id"`
		} `json:"create_item"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Export sends one create_item mutation. Success is HTTP 200 with no
// GraphQL errors; anything else is ErrExport. It never retries.
func (b *BoardClient) Export(ctx context.Context, rec aggregate.Record) error {
	columnValues, err := json.Marshal(ColumnValues(rec, b.columns))
	if err != nil {
		return fmt.Errorf("%w: encode columns: %w", ErrExport, err)
	}
	body, err := json.Marshal(graphQLRequest{
		Query: createItemMutation,
		Variables: map[string]any{
			"boardId":      b.boardID,
			"itemName":     ItemName(rec),
			"columnValues": string(columnValues),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", ErrExport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrExport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", b.token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrExport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: board returned %d: %s", ErrExport, resp.StatusCode, snippet(raw))
	}

	var out graphQLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrExport, err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrExport, strings.Join(msgs, "; "))
	}

	itemID := ""
	if out.Data.CreateItem != nil {
		itemID = out.Data.CreateItem.ID
	}
	b.logger.Info("board item created", "person_key", rec.Key, "board_id", b.boardID, "item_id", itemID)
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

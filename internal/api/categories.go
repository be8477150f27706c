package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bidflow/auction-client/internal/model"
)

// ListCategories fetches all public categories.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.get(ctx, "/categories", nil, &categories); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// GetCategory fetches a single category.
func (c *Client) GetCategory(ctx context.Context, categoryID int64) (*model.Category, error) {
	var category model.Category
	if err := c.get(ctx, "/categories/"+strconv.FormatInt(categoryID, 10), nil, &category); err != nil {
		return nil, fmt.Errorf("get category %d: %w", categoryID, err)
	}
	return &category, nil
}

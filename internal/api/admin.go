package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bidflow/auction-client/internal/model"
)

// AdminListAuctions fetches every auction, including unpublished ones.
func (c *Client) AdminListAuctions(ctx context.Context) ([]model.Auction, error) {
	var auctions []model.Auction
	if err := c.get(ctx, "/admin/auctions", nil, &auctions); err != nil {
		return nil, fmt.Errorf("admin list auctions: %w", err)
	}
	return auctions, nil
}

// AdminCreateAuction creates an auction.
func (c *Client) AdminCreateAuction(ctx context.Context, req model.AuctionRequest) (*model.Auction, error) {
	var auction model.Auction
	if _, err := c.send(ctx, http.MethodPost, "/admin/auctions", req, &auction); err != nil {
		return nil, fmt.Errorf("admin create auction: %w", err)
	}
	return &auction, nil
}

// AdminListCategories fetches every category.
func (c *Client) AdminListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.get(ctx, "/admin/categories", nil, &categories); err != nil {
		return nil, fmt.Errorf("admin list categories: %w", err)
	}
	return categories, nil
}

// AdminGetCategory fetches a category.
func (c *Client) AdminGetCategory(ctx context.Context, categoryID int64) (*model.Category, error) {
	var category model.Category
	if err := c.get(ctx, adminCategoryPath(categoryID), nil, &category); err != nil {
		return nil, fmt.Errorf("admin get category %d: %w", categoryID, err)
	}
	return &category, nil
}

// AdminCreateCategory creates a category.
func (c *Client) AdminCreateCategory(ctx context.Context, req model.CategoryRequest) (*model.Category, error) {
	var category model.Category
	if _, err := c.send(ctx, http.MethodPost, "/admin/categories", req, &category); err != nil {
		return nil, fmt.Errorf("admin create category: %w", err)
	}
	return &category, nil
}

// AdminUpdateCategory replaces a category.
func (c *Client) AdminUpdateCategory(ctx context.Context, categoryID int64, req model.CategoryRequest) (*model.Category, error) {
	var category model.Category
	if _, err := c.send(ctx, http.MethodPut, adminCategoryPath(categoryID), req, &category); err != nil {
		return nil, fmt.Errorf("admin update category %d: %w", categoryID, err)
	}
	return &category, nil
}

// AdminDeleteCategory deletes a category.
func (c *Client) AdminDeleteCategory(ctx context.Context, categoryID int64) error {
	if _, err := c.send(ctx, http.MethodDelete, adminCategoryPath(categoryID), nil, nil); err != nil {
		return fmt.Errorf("admin delete category %d: %w", categoryID, err)
	}
	return nil
}

func adminCategoryPath(categoryID int64) string {
	return "/admin/categories/" + strconv.FormatInt(categoryID, 10)
}

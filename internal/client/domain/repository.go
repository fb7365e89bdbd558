package domain

import (
	"context"

	"github.com/agencyops/renewd/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListClientFilter, page pagination.Pagination) ([]*Client, error)
	SetOptOut(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, optOut bool) error
	ListPreferences(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) ([]*ChannelPreference, error)
	// ReplacePreferences swaps the client's preference rows atomically.
	ReplacePreferences(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID, prefs []*ChannelPreference) error
}

package gormstore

import (
	"testing"

	"storefront/internal/testutil"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	return testutil.NewDB(t)
}

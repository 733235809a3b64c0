package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/craftlane/entrypay/internal/payment/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PaymentRecord{}))
	return db
}

func pendingRecord(t *testing.T, db *gorm.DB, orderID string) *domain.PaymentRecord {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	payment := &domain.PaymentRecord{
		ID:        node.Generate(),
		OrderID:   orderID,
		UserID:    node.Generate(),
		CartID:    node.Generate(),
		ItemIDs:   []byte(`[]`),
		Status:    domain.StatusPending,
		Amount:    8000,
		Currency:  "LKR",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func TestTransitionAppliesOnce(t *testing.T) {
	db := newTestDB(t)
	r := Provide()
	pendingRecord(t, db, "ORD-REPO-0001")

	applied, err := r.Transition(context.Background(), db, "ORD-REPO-0001", domain.StatusPending, domain.StatusCompleted, domain.TransitionFields{})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = r.Transition(context.Background(), db, "ORD-REPO-0001", domain.StatusPending, domain.StatusCompleted, domain.TransitionFields{})
	require.NoError(t, err)
	assert.False(t, applied, "second attempt must lose the conditional write")
}

func TestTransitionRejectsUndefinedEdge(t *testing.T) {
	db := newTestDB(t)
	r := Provide()
	pendingRecord(t, db, "ORD-REPO-0002")

	_, err := r.Transition(context.Background(), db, "ORD-REPO-0002", domain.StatusPending, domain.StatusRefunded, domain.TransitionFields{})
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	found, err := r.FindByOrderID(context.Background(), db, "ORD-REPO-0002")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusPending, found.Status, "a rejected edge must not touch the row")
}

package services

import (
	"context"
	"testing"

	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteService(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNoteService(db)
	ctx := context.Background()

	inactive := false
	_, err := svc.CreateNote(ctx, "sub-1", CreateNoteInput{Title: "Low", Content: "low", Priority: 1})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, "sub-1", CreateNoteInput{Title: "High", Content: "high", Priority: 7})
	require.NoError(t, err)
	off, err := svc.CreateNote(ctx, "sub-1", CreateNoteInput{Title: "Off", Content: "off", Priority: 9, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	var stored models.SubcategoryNote
	require.NoError(t, db.Where("id = ?", off.ID).First(&stored).Error)
	assert.False(t, stored.IsActive, "inactive notes must not fall back to the column default")

	notes, err := svc.ListNotes(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, []string{"Off", "High", "Low"}, []string{notes[0].Title, notes[1].Title, notes[2].Title})

	empty, err := svc.ListNotes(ctx, "sub-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.CreateNote(ctx, "sub-1", CreateNoteInput{Content: "no title"})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.EqualError(t, err, "title is required")

	_, err = svc.CreateNote(ctx, "sub-1", CreateNoteInput{Title: "t", Content: "c", Priority: -1})
	assert.EqualError(t, err, "priority must be greater than or equal to 0")

	_, err = svc.CreateNote(ctx, "", CreateNoteInput{Title: "t", Content: "c"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

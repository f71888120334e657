package bmi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slimmers/internal/access"
	"slimmers/internal/bmi"
	"slimmers/internal/testsupport"
)

func TestCalculate(t *testing.T) {
	value, err := bmi.Calculate(70, 175)
	require.NoError(t, err)
	assert.Equal(t, 22.86, value)

	_, err = bmi.Calculate(0, 175)
	assert.ErrorIs(t, err, bmi.ErrInvalidMeasurement)

	_, err = bmi.Calculate(70, -1)
	assert.ErrorIs(t, err, bmi.ErrInvalidMeasurement)
}

func TestCategory(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{15, bmi.CategoryUnderweight},
		{18.49, bmi.CategoryUnderweight},
		{18.5, bmi.CategoryNormal},
		{24.95, bmi.CategoryNormal},
		{25, bmi.CategoryOverweight},
		{29.95, bmi.CategoryOverweight},
		{30, bmi.CategoryObese},
		{42, bmi.CategoryObese},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bmi.Category(tt.value), "value %v", tt.value)
	}
}

func TestHistory(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner := testsupport.CreateTestUser(t, db, "owner@example.com", "password123", access.RoleMember)
	other := testsupport.CreateTestUser(t, db, "other@example.com", "password123", access.RoleMember)

	first, err := bmi.Save(db, logger, owner.ID, 90, 180)
	require.NoError(t, err)
	assert.Equal(t, 27.78, first.Value)
	assert.Equal(t, bmi.CategoryOverweight, first.Category)

	second, err := bmi.Save(db, logger, owner.ID, 80, 180)
	require.NoError(t, err)

	_, err = bmi.Save(db, logger, other.ID, 50, 170)
	require.NoError(t, err)

	t.Run("lists only the owner's records newest first", func(t *testing.T) {
		entries, err := bmi.History(db, owner.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, bmi.CategoryNormal, entries[0].Category)
		assert.Equal(t, first.ID, entries[1].ID)
	})

	t.Run("cannot delete someone else's record", func(t *testing.T) {
		err := bmi.Delete(db, logger, other.ID, first.ID)
		assert.ErrorIs(t, err, bmi.ErrNotFound)
	})

	t.Run("deletes own record", func(t *testing.T) {
		require.NoError(t, bmi.Delete(db, logger, owner.ID, first.ID))

		entries, err := bmi.History(db, owner.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		assert.ErrorIs(t, bmi.Delete(db, logger, owner.ID, first.ID), bmi.ErrNotFound)
	})

	t.Run("rejects invalid measurements", func(t *testing.T) {
		_, err := bmi.Save(db, logger, owner.ID, 0, 180)
		assert.ErrorIs(t, err, bmi.ErrInvalidMeasurement)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		entries, err := bmi.History(db, 9999)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

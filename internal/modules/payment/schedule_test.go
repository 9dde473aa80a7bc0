package payment

import (
	"testing"
	"time"

	"mealsub/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, _ := time.ParseInLocation(dateLayout, s, time.UTC)
	return d
}

func TestNextDeliveryDateWrapsForward(t *testing.T) {
	wed := date("2024-01-03")
	require.Equal(t, time.Wednesday, wed.Weekday())

	assert.Equal(t, date("2024-01-07"), NextDeliveryDate(wed, time.Sunday))
	assert.Equal(t, wed, NextDeliveryDate(wed, time.Wednesday))
	assert.Equal(t, date("2024-01-05"), NextDeliveryDate(wed, time.Friday))
	assert.Equal(t, date("2024-01-08"), NextDeliveryDate(wed, time.Monday))
}

func TestBuildScheduleOrdersChronologically(t *testing.T) {
	// Thursday start: sunday lands three days out, wednesday six.
	got, err := BuildSchedule(domain.SubscriptionSnapshot{
		MealIDs:      []int64{11, 12},
		DeliveryDays: []string{"wednesday", "sunday"},
		StartDate:    "2024-01-04",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ScheduledDelivery{MealID: 12, Day: "sunday", Date: date("2024-01-07")}, got[0])
	assert.Equal(t, ScheduledDelivery{MealID: 11, Day: "wednesday", Date: date("2024-01-10")}, got[1])
}

func TestBuildScheduleSkipsDaysWithoutMeal(t *testing.T) {
	got, err := BuildSchedule(domain.SubscriptionSnapshot{
		MealIDs:      []int64{5},
		DeliveryDays: []string{"Monday", "tuesday", "friday"},
		StartDate:    "2024-01-03",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "monday", got[0].Day)
	assert.Equal(t, date("2024-01-08"), got[0].Date)
}

func TestBuildScheduleStableForSameDate(t *testing.T) {
	got, err := BuildSchedule(domain.SubscriptionSnapshot{
		MealIDs:      []int64{1, 2, 3},
		DeliveryDays: []string{"friday", "sunday", "friday"},
		StartDate:    "2024-01-03",
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 3, 2}, []int64{got[0].MealID, got[1].MealID, got[2].MealID})
}

func TestValidateSnapshot(t *testing.T) {
	ok := &domain.SubscriptionSnapshot{MealIDs: []int64{1}, DeliveryDays: []string{"sunday"}, StartDate: "2024-01-03"}
	assert.NoError(t, ValidateSnapshot(ok))

	bad := []*domain.SubscriptionSnapshot{
		nil,
		{DeliveryDays: []string{"sunday"}, StartDate: "2024-01-03"},
		{MealIDs: []int64{1}, StartDate: "2024-01-03"},
		{MealIDs: []int64{1}, DeliveryDays: []string{"funday"}, StartDate: "2024-01-03"},
		{MealIDs: []int64{1}, DeliveryDays: []string{"sunday"}, StartDate: "03/01/2024"},
		{MealIDs: []int64{0}, DeliveryDays: []string{"sunday"}, StartDate: "2024-01-03"},
	}
	for i, s := range bad {
		assert.ErrorIs(t, ValidateSnapshot(s), ErrInvalidSnapshot, "case %d", i)
	}
}

package payment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mealsub/internal/domain"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ScheduledDelivery is one meal on one concrete date.
type ScheduledDelivery struct {
	MealID int64
	Day    string
	Date   time.Time
}

func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSnapshot, name)
	}
	return wd, nil
}

// NextDeliveryDate returns the first date on or after start that falls on target.
func NextDeliveryDate(start time.Time, target time.Weekday) time.Time {
	diff := int(target) - int(start.Weekday())
	if diff < 0 {
		diff += 7
	}
	return start.AddDate(0, 0, diff)
}

func parseStartDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_date %q is not YYYY-MM-DD", ErrInvalidSnapshot, s)
	}
	return d, nil
}

// ValidateSnapshot checks a snapshot before it is stored with a session.
func ValidateSnapshot(snap *domain.SubscriptionSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: subscription_data is required", ErrInvalidSnapshot)
	}
	if len(snap.MealIDs) == 0 {
		return fmt.Errorf("%w: at least one meal is required", ErrInvalidSnapshot)
	}
	if len(snap.DeliveryDays) == 0 {
		return fmt.Errorf("%w: at least one delivery day is required", ErrInvalidSnapshot)
	}
	for _, id := range snap.MealIDs {
		if id <= 0 {
			return fmt.Errorf("%w: meal id %d", ErrInvalidSnapshot, id)
		}
	}
	for _, d := range snap.DeliveryDays {
		if _, err := ParseWeekday(d); err != nil {
			return err
		}
	}
	_, err := parseStartDate(snap.StartDate)
	return err
}

// BuildSchedule pairs day i with meal i, skipping days without a meal, and
// orders the result by date. Equal dates keep input order.
func BuildSchedule(snap domain.SubscriptionSnapshot) ([]ScheduledDelivery, error) {
	start, err := parseStartDate(snap.StartDate)
	if err != nil {
		return nil, err
	}
	out := make([]ScheduledDelivery, 0, len(snap.DeliveryDays))
	for i, day := range snap.DeliveryDays {
		if i >= len(snap.MealIDs) {
			break
		}
		wd, err := ParseWeekday(day)
		if err != nil {
			return nil, err
		}
		out = append(out, ScheduledDelivery{
			MealID: snap.MealIDs[i],
			Day:    strings.ToLower(strings.TrimSpace(day)),
			Date:   NextDeliveryDate(start, wd),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out, nil
}

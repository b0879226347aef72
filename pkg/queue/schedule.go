package queue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule determines when a periodic task should run
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// dailySchedule runs once per day at specified time
type dailySchedule struct {
	hour   int
	minute int
}

func (s dailySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		s.hour, s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s dailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
}

// weeklySchedule runs once per week on specified day and time
type weeklySchedule struct {
	weekday time.Weekday
	hour    int
	minute  int
}

func (s weeklySchedule) Next(from time.Time) time.Time {
	// Calculate days until target weekday (handles week wraparound with modulo)
	daysUntil := (int(s.weekday) - int(from.Weekday()) + 7) % 7

	next := from.AddDate(0, 0, daysUntil)
	next = time.Date(
		next.Year(), next.Month(), next.Day(),
		s.hour, s.minute, 0, 0, next.Location(),
	)

	if !next.After(from) {
		next = next.AddDate(0, 0, 7) // Next week
	}
	return next
}

func (s weeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.weekday, s.hour, s.minute)
}

// monthlySchedule runs once per month on specified day and time
type monthlySchedule struct {
	day    int
	hour   int
	minute int
}

// hourlySchedule runs every hour at specified minute
type hourlySchedule struct {
	minute int
}

func (s hourlySchedule) Next(from time.Time) time.Time {
	next := time.Date(
		from.Year(), from.Month(), from.Day(),
		from.Hour(), s.minute, 0, 0, from.Location(),
	)
	if !next.After(from) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s hourlySchedule) String() string {
	return fmt.Sprintf("hourly at :%02d", s.minute)
}

func (s monthlySchedule) Next(from time.Time) time.Time {
	year, month := from.Year(), from.Month()

	// Handle month-end overflow (e.g., requesting 31st of February becomes 28th/29th)
	day := min(s.day, daysInMonth(year, month))
	next := time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())

	if !next.After(from) {
		// Move to next month
		if month == time.December {
			year++
			month = time.January
		} else {
			month++
		}

		// Recalculate day for new month
		day = min(s.day, daysInMonth(year, month))
		next = time.Date(year, month, day, s.hour, s.minute, 0, 0, from.Location())
	}

	return next
}

func (s monthlySchedule) String() string {
	return fmt.Sprintf("monthly on day %d at %02d:%02d", s.day, s.hour, s.minute)
}

// EveryInterval creates a schedule that runs at fixed intervals
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// EveryMinutes creates a schedule that runs every n minutes
func EveryMinutes(n int) Schedule {
	return intervalSchedule{every: time.Duration(n) * time.Minute}
}

// EveryHours creates a schedule that runs every n hours
func EveryHours(n int) Schedule {
	return intervalSchedule{every: time.Duration(n) * time.Hour}
}

// DailyAt creates a schedule that runs daily at specified time
func DailyAt(hour, minute int) Schedule {
	return dailySchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule that runs weekly on specified day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return weeklySchedule{weekday: weekday, hour: hour, minute: minute}
}

// MonthlyOn creates a schedule that runs monthly on specified day and time
func MonthlyOn(day, hour, minute int) Schedule {
	return monthlySchedule{day: day, hour: hour, minute: minute}
}

// EveryMinute creates a schedule that runs every minute
func EveryMinute() Schedule {
	return intervalSchedule{every: time.Minute}
}

// Hourly creates a schedule that runs every hour at :00
func Hourly() Schedule {
	return intervalSchedule{every: time.Hour}
}

// HourlyAt creates a schedule that runs every hour at specified minute
func HourlyAt(minute int) Schedule {
	return hourlySchedule{minute: minute}
}

// Daily creates a schedule that runs daily at midnight
func Daily() Schedule {
	return dailySchedule{hour: 0, minute: 0}
}

// Weekly creates a schedule that runs weekly on specified day at midnight
func Weekly(weekday time.Weekday) Schedule {
	return weeklySchedule{weekday: weekday, hour: 0, minute: 0}
}

// Monthly creates a schedule that runs monthly on specified day at midnight
func Monthly(day int) Schedule {
	return monthlySchedule{day: day, hour: 0, minute: 0}
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfMonth := firstOfNext.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseSchedule reads the textual schedule forms used in configuration
// and on the command line:
//
//	every 5m
//	hourly :15
//	daily 03:00
//	weekly mon 03:00
//	monthly 1 03:00
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(strings.ToLower(expr))
	if len(parts) == 0 {
		return nil, ErrInvalidSchedule
	}

	var (
		sched Schedule
		err   error
	)
	switch {
	case parts[0] == "every" && len(parts) == 2:
		var d time.Duration
		if d, err = time.ParseDuration(parts[1]); err == nil {
			if d <= 0 {
				err = errors.New("interval must be positive")
			}
			sched = EveryInterval(d)
		}
	case parts[0] == "hourly" && len(parts) == 2:
		var m int
		if m, err = parseMinute(strings.TrimPrefix(parts[1], ":")); err == nil {
			sched = HourlyAt(m)
		}
	case parts[0] == "daily" && len(parts) == 2:
		var h, m int
		if h, m, err = parseClock(parts[1]); err == nil {
			sched = DailyAt(h, m)
		}
	case parts[0] == "weekly" && len(parts) == 3:
		day, ok := weekdays[parts[1][:min(3, len(parts[1]))]]
		if !ok {
			err = fmt.Errorf("unknown weekday %q", parts[1])
			break
		}
		var h, m int
		if h, m, err = parseClock(parts[2]); err == nil {
			sched = WeeklyOn(day, h, m)
		}
	case parts[0] == "monthly" && len(parts) == 3:
		var day, h, m int
		if day, err = strconv.Atoi(parts[1]); err == nil && (day < 1 || day > 31) {
			err = fmt.Errorf("day %d out of range", day)
		}
		if err != nil {
			break
		}
		if h, m, err = parseClock(parts[2]); err == nil {
			sched = MonthlyOn(day, h, m)
		}
	default:
		err = errors.New("unrecognized form")
	}
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, fmt.Errorf("%q: %w", expr, err))
	}
	return sched, nil
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	if hour, err = strconv.Atoi(h); err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %q out of range", h)
	}
	if minute, err = parseMinute(m); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

func parseMinute(s string) (int, error) {
	m, err := strconv.Atoi(s)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("minute %q out of range", s)
	}
	return m, nil
}

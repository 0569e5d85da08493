package generic

// =============================================================================
// WORKING-DAY CALCULATOR
// =============================================================================

// ChargeableDays counts the days in [start, end] that cost the employee
// balance: Monday to Friday and not a holiday. The weekend and holiday
// filters are independent, so a holiday on a Saturday is excluded once.
//
// The range is walked one day at a time; month lengths and leap years fall
// out of the calendar arithmetic. Zero is a valid result.
func ChargeableDays(start, end Date, holidays HolidaySet) (int, error) {
	if end.Before(start) {
		return 0, &InvalidRangeError{Start: start, End: end}
	}

	count := 0
	for day := start; !day.After(end); day = day.AddDays(1) {
		if day.IsWorkdayWithHolidays(holidays) {
			count++
		}
	}
	return count, nil
}

// DaysInRange returns the number of calendar days in [start, end].
func DaysInRange(start, end Date) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Time().Sub(start.Time()).Hours()/24) + 1
}

package insights

import (
	"fmt"
	"sort"
	"time"

	"cliniq/internal/models"
)

var weekdaysMondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

var workdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// HourlyArrivals counts arrivals per hour of day in loc.
func HourlyArrivals(arrivals []models.Arrival, loc *time.Location) [24]int {
	var counts [24]int
	for _, arrival := range arrivals {
		counts[arrival.At.In(loc).Hour()]++
	}
	return counts
}

// MostAvailableHour is the hour with the fewest arrivals; the earliest
// hour wins a tie.
func MostAvailableHour(arrivals []models.Arrival, loc *time.Location) int {
	counts := HourlyArrivals(arrivals, loc)
	best := 0
	for hour := 1; hour < len(counts); hour++ {
		if counts[hour] < counts[best] {
			best = hour
		}
	}
	return best
}

// BusiestDay is the weekday with the most arrivals, Monday when there is
// no history. Ties go to the earlier day of the week.
func BusiestDay(arrivals []models.Arrival, loc *time.Location) string {
	if len(arrivals) == 0 {
		return time.Monday.String()
	}
	counts := make(map[time.Weekday]int, 7)
	for _, arrival := range arrivals {
		counts[arrival.At.In(loc).Weekday()]++
	}
	best := weekdaysMondayFirst[0]
	for _, day := range weekdaysMondayFirst[1:] {
		if counts[day] > counts[best] {
			best = day
		}
	}
	return best.String()
}

// RecommendSlot pairs the next working day in a Monday-Friday rotation
// with the quietest hour. dept is accepted for API symmetry and does not
// influence the result.
func RecommendSlot(now time.Time, bestHour int, dept string) string {
	today := (int(now.Weekday()) + 6) % 7
	return fmt.Sprintf("%s at %d:00", workdays[(today+1)%len(workdays)], bestHour)
}

type PeakCell struct {
	Dept  string `json:"dept"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
}

// PeakHours groups arrivals by department and hour. Cells with no
// arrivals are omitted.
func PeakHours(arrivals []models.Arrival, loc *time.Location) []PeakCell {
	type key struct {
		dept string
		hour int
	}
	counts := make(map[key]int)
	for _, arrival := range arrivals {
		counts[key{dept: arrival.Dept, hour: arrival.At.In(loc).Hour()}]++
	}
	cells := make([]PeakCell, 0, len(counts))
	for k, count := range counts {
		cells = append(cells, PeakCell{Dept: k.dept, Hour: k.hour, Count: count})
	}
	sort.Slice(cells, func(i, j int) bool {
		ri, rj := deptRank(cells[i].Dept), deptRank(cells[j].Dept)
		if ri != rj {
			return ri < rj
		}
		if cells[i].Dept != cells[j].Dept {
			return cells[i].Dept < cells[j].Dept
		}
		return cells[i].Hour < cells[j].Hour
	})
	return cells
}

func deptRank(dept string) int {
	for i, name := range models.Departments {
		if name == dept {
			return i
		}
	}
	return len(models.Departments)
}

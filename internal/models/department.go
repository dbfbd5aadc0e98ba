package models

// Departments is the closed set of clinic departments, in display order.
var Departments = []string{"General", "Cardiology", "Pediatrics", "Ortho"}

func IsDepartment(name string) bool {
	for _, dept := range Departments {
		if dept == name {
			return true
		}
	}
	return false
}

const (
	CountryIndia = "India"
	CountryJapan = "Japan"
	CountryOther = "Other"
)

var Countries = []string{CountryIndia, CountryJapan, CountryOther}

package keyterms

// fallbackTerms is the generic housing/healthcare scheduling vocabulary used
// whenever no personalized set is available. Note "clinic" is deliberately
// absent: it is phonetically close to "calling" and causes misrecognitions.
var fallbackTerms = []string{
	// Healthcare
	"appointment", "reschedule", "follow-up", "consultation",
	"primary care", "specialist", "referral", "prescription",
	"Medicare", "Medicaid", "insurance", "copay", "deductible",
	"cardiology", "orthopedics", "nephrology", "oncology",
	"physical therapy", "occupational therapy", "dialysis",
	"blood pressure", "cholesterol", "diabetes", "Metformin",
	"MRI", "CT scan", "X-ray", "ultrasound", "lab work",
	// Housing
	"Section 8", "housing voucher", "HUD", "subsidized housing",
	"affordable housing", "income verification", "lease agreement",
	"rental assistance", "LIHEAP", "weatherization",
	"housing authority", "case worker", "application status",
	"maintenance request", "property manager", "landlord",
	// Scheduling
	"available", "morning", "afternoon", "Tuesday", "Thursday",
	"next week", "tomorrow", "confirm", "cancel", "waiting list",
	// Common entities
	"Social Security", "disability", "SNAP", "food stamps",
	"home health aide", "visiting nurse", "transportation",
}

// Fallback returns the static housing/healthcare vocabulary as a Set. It is
// the session's starting vocabulary and the floor that personalized sets are
// merged against.
func Fallback() Set {
	return New(fallbackTerms, DefaultMaxTerms)
}

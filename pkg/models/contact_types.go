package models

// ValidContactTypes is the fixed contact-type taxonomy shared by both systems.
// The same list is used to provision the enum options on the Pipedrive custom
// fields, so labels must match exactly.
var ValidContactTypes = []string{
	"Participant",
	"Prospective Participant",
	"Individual Donor",
	"Prospective Individual Donor",
	"Institutional Donor",
	"Prospective Institutional Donor",
	"Product Partner",
	"Prospective Product Partner",
	"Program Partner",
	"Prospective Program Partner",
	"Corporate Partner",
	"Prospective Corporate Partner",
	"Influencer",
	"Media Contact",
	"Volunteer",
	"Advisor",
	"Board",
	"Staff",
	"Vendor",
}

// ValidContactType checks if the given label is a member of the taxonomy.
func ValidContactType(label string) bool {
	for _, t := range ValidContactTypes {
		if t == label {
			return true
		}
	}
	return false
}

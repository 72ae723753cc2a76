package domain

// Profile is an activity profile owned by a user and shared with a
// partner skill.
type Profile struct {
	ProfileID    string   `json:"profileId"`
	Name         Name     `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// Name holds the profile holder's name and nicknames.
type Name struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Nicknames []string `json:"nickNames,omitempty"`
}

// Profile capabilities understood by the downstream activity API.
const (
	CapabilityWeight        = "WEIGHT"
	CapabilityDiaperChange  = "DIAPER_CHANGE"
	CapabilityInfantFeeding = "INFANT_FEEDING"
	CapabilitySleep         = "SLEEP"
)

// ProfileReport is the payload posted to the activity profile endpoint.
type ProfileReport struct {
	ReportID string    `json:"reportId"`
	Profiles []Profile `json:"profiles"`
}

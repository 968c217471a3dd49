package checker

const (
	statusActive   = "active"
	statusInactive = "inactive"
)

// Crunchyroll's account page exposes no machine-readable renewal data, so
// renewal fields are synthetic placeholders. The mismatch between the two
// constants is inherited behavior.
const (
	syntheticRenewalDays = 120
	syntheticDaysLeft    = 118
)

type AccountStatus struct {
	Country       string `json:"country"`
	Plan          string `json:"plan"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	Trial         bool   `json:"trial"`
	RenewalDate   string `json:"renewal_date"`
	DaysLeft      int    `json:"days_left"`
}

type CheckResult struct {
	Success           bool           `json:"success"`
	FormattedResponse string         `json:"formatted_response"`
	RawData           *AccountStatus `json:"raw_data,omitempty"`
	Error             string         `json:"error,omitempty"`
}

type BatchResult struct {
	Success           bool     `json:"success"`
	Results           []string `json:"results"`
	TotalChecked      int      `json:"total_checked"`
	FormattedResponse string   `json:"formatted_response"`
}

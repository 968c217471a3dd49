package checker

import (
	"fmt"
	"strings"
)

// The formatted string is the primary payload consumers read; raw_data and
// error are the machine-readable side channel.

func formatSuccess(email string, status *AccountStatus) CheckResult {
	icon := "❌"
	label := "Free Account"
	if status.Status == statusActive {
		icon = "✅"
		label = "Premium Account"
	}

	lines := []string{
		icon + " " + label,
		"",
		"Account: " + email,
		"Country: " + status.Country,
		"Plan: " + status.Plan,
		"Payment: " + status.PaymentMethod,
		"Status: " + status.Status,
		fmt.Sprintf("Trial: %t", status.Trial),
		"Renewal: " + status.RenewalDate,
		fmt.Sprintf("Days Left: %d", status.DaysLeft),
	}

	return CheckResult{
		Success:           true,
		FormattedResponse: strings.Join(lines, "\n"),
		RawData:           status,
	}
}

func formatFailure(email, message string) CheckResult {
	return CheckResult{
		Success:           false,
		FormattedResponse: fmt.Sprintf("❌ Invalid Account\n\nAccount: %s\nError: %s", email, message),
		Error:             message,
	}
}

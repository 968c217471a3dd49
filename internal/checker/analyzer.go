package checker

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Substrings whose presence in the account page text is treated as evidence
// of an active subscription.
var premiumKeywords = []string{
	"premium", "megafan", "mega fan", "fan pack",
	"subscription", "member", "payment method",
}

var (
	countryPattern = regexp.MustCompile(`(?i)country[:\s]*([a-z]{2})`)
	planPattern    = regexp.MustCompile(`(?i)plan[:\s]*([^\n\r]+)`)
	paymentPattern = regexp.MustCompile(`(?i)payment[:\s]*([^\n\r]+)`)
)

// Analyze inspects the visible text of the account page and produces a
// status record. A page with no premium keyword is a confirmed free account,
// not an error.
func Analyze(email, html string) CheckResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return formatFailure(email, "Failed to parse account page: "+err.Error())
	}

	pageText := doc.Text()
	lowered := strings.ToLower(pageText)

	premium := false
	for _, keyword := range premiumKeywords {
		if strings.Contains(lowered, keyword) {
			premium = true
			break
		}
	}

	if !premium {
		return formatSuccess(email, &AccountStatus{
			Country:       "Unknown",
			Plan:          "Free",
			PaymentMethod: "None",
			Status:        statusInactive,
			Trial:         false,
			RenewalDate:   "N/A",
			DaysLeft:      0,
		})
	}

	return formatSuccess(email, &AccountStatus{
		Country:       extractCountry(pageText),
		Plan:          extractPlan(pageText, lowered),
		PaymentMethod: extractPayment(pageText),
		Status:        statusActive,
		Trial:         strings.Contains(lowered, "trial"),
		RenewalDate:   syntheticRenewalDate(time.Now()),
		DaysLeft:      syntheticDaysLeft,
	})
}

func extractCountry(pageText string) string {
	if match := countryPattern.FindStringSubmatch(pageText); match != nil {
		return strings.ToUpper(match[1])
	}
	return "US"
}

func extractPlan(pageText, lowered string) string {
	if match := planPattern.FindStringSubmatch(pageText); match != nil {
		return strings.TrimSpace(match[1])
	}
	if strings.Contains(lowered, "mega fan") {
		return "Mega Fan - fan_pack"
	}
	if strings.Contains(lowered, "premium") {
		return "Premium"
	}
	return "Premium Plan"
}

func extractPayment(pageText string) string {
	if match := paymentPattern.FindStringSubmatch(pageText); match != nil {
		return strings.TrimSpace(match[1])
	}
	return "Credit Card"
}

func syntheticRenewalDate(now time.Time) string {
	return now.AddDate(0, 0, syntheticRenewalDays).Format("02-01-2006")
}

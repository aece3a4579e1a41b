package worker

import (
	"mapslead/models"
	"mapslead/utils"
)

// LeadTemplate is one business archetype the scrape simulator copies from.
type LeadTemplate struct {
	BusinessName string
	Address      string
	Website      string
	Email        string
	Phone        string
	Rating       float64
	ReviewCount  int
	GMBLink      string
	Source       string
}

// DefaultLeadTemplates is the fixed pool of archetypes drawn with replacement.
var DefaultLeadTemplates = []LeadTemplate{
	{"Elite Dental Clinic", "123 Main St, New York, NY", "https://elitedental.com", "info@elitedental.com", "+1-212-555-0101", 4.8, 234, "https://g.page/elite-dental", models.SourceGoogleMaps},
	{"Bright Smile Dentistry", "456 Oak Ave, Los Angeles, CA", "https://brightsmile.com", "contact@brightsmile.com", "+1-323-555-0202", 4.9, 567, "https://g.page/bright-smile", models.SourceGoogleMaps},
	{"Modern Roofing Solutions", "789 Pine Rd, Chicago, IL", "https://modernroofing.com", "hello@modernroofing.com", "+1-312-555-0303", 4.7, 189, "https://g.page/modern-roofing", models.SourceGoogleMaps},
	{"Premium Plumbing Co", "321 Elm St, Houston, TX", "https://premiumplumbing.com", "service@premiumplumbing.com", "+1-713-555-0404", 4.6, 423, "https://g.page/premium-plumbing", models.SourceGoogleMaps},
	{"Downtown Law Firm", "654 Market St, San Francisco, CA", "https://downtownlaw.com", "info@downtownlaw.com", "+1-415-555-0505", 4.9, 312, "https://g.page/downtown-law", models.SourceGoogleMaps},
	{"Fresh Cafe & Bakery", "987 Broadway, Seattle, WA", "https://freshcafe.com", "orders@freshcafe.com", "+1-206-555-0606", 4.5, 678, "https://g.page/fresh-cafe", models.SourceGoogleMaps},
	{"Tech Repair Hub", "147 Tech Blvd, Austin, TX", "https://techrepair.com", "support@techrepair.com", "+1-512-555-0707", 4.8, 445, "https://g.page/tech-repair", models.SourceGoogleMaps},
	{"Green Landscaping", "258 Garden Way, Portland, OR", "https://greenlandscape.com", "info@greenlandscape.com", "+1-503-555-0808", 4.7, 289, "https://g.page/green-landscape", models.SourceGoogleMaps},
	{"Family Health Clinic", "369 Health Dr, Boston, MA", "https://familyhealth.com", "appointments@familyhealth.com", "+1-617-555-0909", 4.9, 521, "https://g.page/family-health", models.SourceGoogleMaps},
	{"Quick Auto Repair", "741 Auto St, Miami, FL", "https://quickauto.com", "service@quickauto.com", "+1-305-555-1010", 4.6, 334, "https://g.page/quick-auto", models.SourceGoogleMaps},
}

// matches reports whether the template satisfies every filter that is set.
func (t LeadTemplate) matches(f models.JobFilters) bool {
	if f.HasWebsite != nil && *f.HasWebsite != (t.Website != "") {
		return false
	}
	if f.HasEmail != nil && *f.HasEmail != (t.Email != "") {
		return false
	}
	if f.MinReviews != nil && t.ReviewCount < *f.MinReviews {
		return false
	}
	return true
}

// eligibleTemplates returns the templates matching f, or the whole pool when none match.
func eligibleTemplates(pool []LeadTemplate, f models.JobFilters) []LeadTemplate {
	var eligible []LeadTemplate
	for _, t := range pool {
		if t.matches(f) {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return pool
	}
	return eligible
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return utils.Pointer(s)
}

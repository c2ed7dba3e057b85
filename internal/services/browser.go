package services

import (
	"strings"

	"github.com/mileusna/useragent"
)

// BrowserString renders the user agent as "<name>-<version>".
func BrowserString(userAgent string) string {
	ua := useragent.Parse(userAgent)
	name := ua.Name
	if name == "" {
		name = "Other"
	}
	return name + "-" + ua.Version
}

// ProhibitedBrowser reports whether browser contains any of the blocked names.
func ProhibitedBrowser(browser string, prohibited []string) bool {
	for _, p := range prohibited {
		if p != "" && strings.Contains(browser, p) {
			return true
		}
	}
	return false
}

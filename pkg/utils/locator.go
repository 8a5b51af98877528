package utils

import "strings"

// ResolveLocator turns a backend-relative artifact locator into a
// playable URL. Absolute locators pass through untouched.
func ResolveLocator(base, locator string) string {
	if locator == "" {
		return ""
	}
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(locator, "/")
}

// DownloadName suggests a filename for a stem or remix artifact.
func DownloadName(label string) string {
	if label == "" {
		label = "remix"
	}
	return label + ".wav"
}

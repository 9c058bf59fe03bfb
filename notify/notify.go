// Package notify derives the prioritized notification list shown in the
// console from a server status snapshot: license expiry and new release
// availability.
package notify

import (
	"fmt"

	"github.com/russross/blackfriday/v2"
)

// ReleaseStatus is the release part of the server status snapshot.
type ReleaseStatus struct {
	Latest  string `json:"latest,omitempty"` // Latest published version.
	IsNewer bool   `json:"is_newer"`         // Whether latest is newer than the running server.
	Notes   string `json:"notes,omitempty"`  // Release notes, markdown.
}

// LicenseStatus is the license part of the server status snapshot.
type LicenseStatus struct {
	Expired bool `json:"expired"`
	Days    int  `json:"days"` // Days until expiry, if not expired.
}

// Snapshot is the server status as returned by the notifications endpoint.
type Snapshot struct {
	Release ReleaseStatus `json:"release"`
	License LicenseStatus `json:"license"`
}

// Severity of a notification, for display emphasis.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kind identifies what a notification is about.
type Kind string

const (
	KindLicenseExpired  Kind = "license-expired"
	KindLicenseExpiring Kind = "license-expiring"
	KindRelease         Kind = "release"
)

// Days within which license expiry becomes a warning.
const licenseWarningDays = 30

// Notification is a single entry in the console notification list.
type Notification struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Aggregate derives the ordered notification list from a snapshot: at most
// one license entry, then at most one release entry. An expired license is
// critical; expiry within 30 days is a warning; otherwise no license entry.
// A release entry is present only when a newer version is known.
func Aggregate(s Snapshot) []Notification {
	var l []Notification
	if s.License.Expired {
		l = append(l, Notification{
			Kind:     KindLicenseExpired,
			Severity: SeverityCritical,
			Title:    "License expired",
			Message:  "The server license has expired. Renew to keep the server functional.",
		})
	} else if s.License.Days <= licenseWarningDays {
		l = append(l, Notification{
			Kind:     KindLicenseExpiring,
			Severity: SeverityWarning,
			Title:    "License expiring",
			Message:  fmt.Sprintf("The server license expires in %d days.", s.License.Days),
		})
	}
	if s.Release.IsNewer && s.Release.Latest != "" {
		l = append(l, Notification{
			Kind:     KindRelease,
			Severity: SeverityInfo,
			Title:    "New release available",
			Message:  fmt.Sprintf("Version %s is available.", s.Release.Latest),
		})
	}
	return l
}

// Badge returns the notification count and whether the badge should be shown
// as critical. Critical iff any entry is an expired license.
func Badge(l []Notification) (count int, critical bool) {
	for _, n := range l {
		if n.Kind == KindLicenseExpired {
			critical = true
		}
	}
	return len(l), critical
}

// RenderNotes renders release-note markdown to HTML, for display of the
// changelog of a new release.
func RenderNotes(md string) []byte {
	return blackfriday.Run([]byte(md), blackfriday.WithExtensions(blackfriday.CommonExtensions))
}

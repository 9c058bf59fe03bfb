package notify

import (
	"strings"
	"testing"
)

func TestAggregate(t *testing.T) {
	check := func(s Snapshot, exp []Kind) {
		t.Helper()
		l := Aggregate(s)
		if len(l) != len(exp) {
			t.Fatalf("got %d notifications %v, expected %d", len(l), l, len(exp))
		}
		for i, n := range l {
			if n.Kind != exp[i] {
				t.Fatalf("entry %d: got %s, expected %s", i, n.Kind, exp[i])
			}
		}
	}

	check(Snapshot{License: LicenseStatus{Days: 300}}, nil)
	check(Snapshot{License: LicenseStatus{Expired: true}}, []Kind{KindLicenseExpired})
	check(Snapshot{License: LicenseStatus{Days: 30}}, []Kind{KindLicenseExpiring})
	check(Snapshot{License: LicenseStatus{Days: 31}}, nil)
	check(Snapshot{Release: ReleaseStatus{Latest: "1.2.3", IsNewer: true}, License: LicenseStatus{Days: 300}}, []Kind{KindRelease})
	// No release entry without a known latest version.
	check(Snapshot{Release: ReleaseStatus{IsNewer: true}, License: LicenseStatus{Days: 300}}, nil)
	check(Snapshot{Release: ReleaseStatus{Latest: "1.2.3"}, License: LicenseStatus{Days: 300}}, nil)

	// License always first.
	check(Snapshot{
		Release: ReleaseStatus{Latest: "1.2.3", IsNewer: true},
		License: LicenseStatus{Expired: true},
	}, []Kind{KindLicenseExpired, KindRelease})
}

func TestBadge(t *testing.T) {
	l := Aggregate(Snapshot{
		Release: ReleaseStatus{Latest: "1.2.3", IsNewer: true},
		License: LicenseStatus{Expired: true},
	})
	count, critical := Badge(l)
	if count != 2 || !critical {
		t.Fatalf("got count %d critical %v, expected 2 true", count, critical)
	}

	l = Aggregate(Snapshot{License: LicenseStatus{Days: 10}})
	count, critical = Badge(l)
	if count != 1 || critical {
		t.Fatalf("got count %d critical %v, expected 1 false", count, critical)
	}
}

func TestRenderNotes(t *testing.T) {
	html := string(RenderNotes("# Release 1.2.3\n\n- faster search\n"))
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<li>faster search</li>") {
		t.Fatalf("unexpected rendering: %s", html)
	}
}

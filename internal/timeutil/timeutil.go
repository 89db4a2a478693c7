// Package timeutil converts between the product's display time zone and the
// canonical storage instants.
//
// All scheduling in the product is presented to users as wall-clock time in a
// single fixed reference zone (UTC+5:30); storage and due-time comparison use
// UTC. ToCanonical and ToLocalDisplay are exact inverses to the minute.
package timeutil

import (
	"time"
)

// Zone is the fixed product reference zone, UTC+5:30.
var Zone = time.FixedZone("IST", 5*3600+30*60)

// LocalLayout is the wall-clock representation shown to and accepted from users.
const LocalLayout = "2006-01-02 15:04"

// ToCanonical maps a local wall-clock string to its canonical UTC instant.
// Input is assumed syntactically valid; callers that accept user input should
// go through ParseLocal instead. Invalid input yields the zero instant.
func ToCanonical(local string) time.Time {
	t, _ := time.ParseInLocation(LocalLayout, local, Zone)
	return t.UTC()
}

// ToLocalDisplay maps a canonical instant to the local wall-clock string.
func ToLocalDisplay(t time.Time) string {
	return t.In(Zone).Format(LocalLayout)
}

// ParseLocal is the validating variant of ToCanonical for the HTTP layer.
func ParseLocal(local string) (time.Time, error) {
	t, err := time.ParseInLocation(LocalLayout, local, Zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

package domain

import (
	"testing"
	"time"
)

func TestExpiryString_ZeroPadded(t *testing.T) {
	e := Expiry{Year: 2027, Month: 3, Day: 5}
	if got := e.String(); got != "2027-03-05" {
		t.Errorf("expected 2027-03-05, got %s", got)
	}
}

func TestExpiryValid(t *testing.T) {
	cases := []struct {
		name   string
		expiry Expiry
		want   bool
	}{
		{"normal date", Expiry{2027, 6, 30}, true},
		{"leap day", Expiry{2028, 2, 29}, true},
		{"non-leap feb 29", Expiry{2027, 2, 29}, false},
		{"month 13", Expiry{2027, 13, 1}, false},
		{"day 32", Expiry{2027, 1, 32}, false},
		{"zero value", Expiry{}, false},
		{"negative year", Expiry{-1, 1, 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.expiry.Valid(); got != tc.want {
				t.Errorf("Valid(%v) = %v, want %v", tc.expiry, got, tc.want)
			}
		})
	}
}

func TestExpiryOf(t *testing.T) {
	ts := time.Date(2027, time.August, 9, 13, 45, 0, 0, time.UTC)
	if got := ExpiryOf(ts); got != (Expiry{2027, 8, 9}) {
		t.Errorf("unexpected expiry: %v", got)
	}
}

func TestItemKeyString(t *testing.T) {
	k := ItemKey{ItemID: "widget", Expiry: Expiry{2027, 1, 2}}
	if got := k.String(); got != "widget:2027-01-02" {
		t.Errorf("expected widget:2027-01-02, got %s", got)
	}
}

func TestItemKeyEquality(t *testing.T) {
	a := ItemKey{ItemID: "widget", Expiry: Expiry{2027, 1, 2}}
	b := ItemKey{ItemID: "widget", Expiry: Expiry{2027, 1, 2}}
	c := ItemKey{ItemID: "widget", Expiry: Expiry{2027, 1, 3}}

	if a != b {
		t.Error("identical keys should compare equal")
	}
	if a == c {
		t.Error("keys with different expiry should not compare equal")
	}
}

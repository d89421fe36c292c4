package opportunity

import "testing"

func TestParseCondition(t *testing.T) {
	cases := []struct {
		title string
		want  Condition
		ok    bool
	}{
		{"Will the high temp in Miami be 85°F or higher?", Condition{Kind: KindGreater, Threshold: 85}, true},
		{"High temperature at least 90F today", Condition{Kind: KindGreater, Threshold: 90}, true},
		{"Will the high be above 88°F?", Condition{Kind: KindGreater, Threshold: 88}, true},
		{"Will the high temp be 79°F or lower?", Condition{Kind: KindLess, Threshold: 79}, true},
		{"High temperature below 75F", Condition{Kind: KindLess, Threshold: 75}, true},
		{"Will the high be between 83°F and 84°F?", Condition{Kind: KindBetween, Low: 83, High: 84}, true},
		{"High temp 86°F to 87°F", Condition{Kind: KindBetween, Low: 86, High: 87}, true},
		// Reversed range still normalizes low/high.
		{"Between 88°F and 85°F", Condition{Kind: KindBetween, Low: 85, High: 88}, true},
		{"Will it rain in Miami tomorrow?", Condition{}, false},
		{"Highest temperature in Miami today", Condition{}, false},
	}

	for _, tc := range cases {
		got, ok := ParseCondition(tc.title)
		if ok != tc.ok {
			t.Fatalf("%q: want ok=%v, got %v", tc.title, tc.ok, ok)
		}
		if !ok {
			continue
		}
		if got != tc.want {
			t.Fatalf("%q: want %+v, got %+v", tc.title, tc.want, got)
		}
	}
}

func TestConditionString(t *testing.T) {
	if s := (Condition{Kind: KindGreater, Threshold: 85}).String(); s != ">=85F" {
		t.Fatalf("got %q", s)
	}
	if s := (Condition{Kind: KindBetween, Low: 83, High: 84}).String(); s != "83-84F" {
		t.Fatalf("got %q", s)
	}
}

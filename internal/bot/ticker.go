package bot

import (
	"fmt"
	"strings"
	"time"
)

// TickerForDate derives the daily market ticker from a series prefix and a
// calendar date: DDMMMYY uppercased, e.g. KXHIGHMIA-26JAN26.
func TickerForDate(seriesPrefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s", seriesPrefix, strings.ToUpper(t.Format("02Jan06")))
}

package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Locale decides how numerals and slash dates are read.
type Locale struct {
	Location   *time.Location
	Name       string
	DecimalSep byte
	GroupSep   byte
	// DayFirst reads 3/4 as the third of April.
	DayFirst bool
}

// Vietnamese is the default locale: 50.000 is fifty thousand, 2,5 is two and a half.
func Vietnamese() Locale {
	return Locale{
		Name:       "vi",
		DecimalSep: ',',
		GroupSep:   '.',
		DayFirst:   true,
		Location:   loadLocation("Asia/Ho_Chi_Minh"),
	}
}

// English reads 50,000 as fifty thousand and slash dates month first.
func English() Locale {
	return Locale{
		Name:       "en",
		DecimalSep: '.',
		GroupSep:   ',',
		DayFirst:   false,
		Location:   time.UTC,
	}
}

// LocaleByName returns a preset locale. An optional IANA zone overrides the
// preset's time zone.
func LocaleByName(name, zone string) (Locale, error) {
	var loc Locale
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "vi", "vi-vn", "vi_vn":
		loc = Vietnamese()
	case "en", "en-us", "en_us":
		loc = English()
	default:
		return Locale{}, fmt.Errorf("unsupported locale %q", name)
	}
	if zone != "" {
		tz, err := time.LoadLocation(zone)
		if err != nil {
			return Locale{}, fmt.Errorf("invalid time zone %q: %w", zone, err)
		}
		loc.Location = tz
	}
	return loc, nil
}

func loadLocation(name string) *time.Location {
	tz, err := time.LoadLocation(name)
	if err != nil {
		// Vietnam has no DST; a fixed zone is exact when tzdata is missing.
		return time.FixedZone(name, 7*60*60)
	}
	return tz
}

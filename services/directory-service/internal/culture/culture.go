// Package culture resolves the display conventions the widget ships to
// the browser: locale, first day of week and clock format. Bookings and
// schedules themselves stay in UTC; these settings only shape rendering.
package culture

import (
	"strings"

	"golang.org/x/text/language"
)

// First entry is the fallback when nothing matches.
var supported = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.Spanish,
	language.French,
	language.BrazilianPortuguese,
	language.Polish,
	language.Ukrainian,
}

var matcher = language.NewMatcher(supported)

type Settings struct {
	Locale     string `json:"locale"`
	WeekStart  string `json:"week_start"`
	TimeFormat string `json:"time_format"`
}

// Resolve picks widget display settings. A locale pinned in portal
// settings wins over Accept-Language negotiation; pinned week_start and
// time_format win over the locale's conventions.
func Resolve(acceptLanguage, portalLocale, portalWeekStart, portalTimeFormat string) Settings {
	tag := negotiate(acceptLanguage, portalLocale)

	s := Settings{
		Locale:     tag.String(),
		WeekStart:  weekStartFor(tag),
		TimeFormat: timeFormatFor(tag),
	}
	switch strings.ToLower(strings.TrimSpace(portalWeekStart)) {
	case "monday":
		s.WeekStart = "monday"
	case "sunday":
		s.WeekStart = "sunday"
	}
	switch strings.ToLower(strings.TrimSpace(portalTimeFormat)) {
	case "24h":
		s.TimeFormat = "24h"
	case "12h":
		s.TimeFormat = "12h"
	}
	return s
}

func negotiate(acceptLanguage, portalLocale string) language.Tag {
	if pinned := strings.TrimSpace(portalLocale); pinned != "" {
		if t, err := language.Parse(pinned); err == nil {
			_, idx, conf := matcher.Match(t)
			if conf > language.No {
				return supported[idx]
			}
		}
	}

	desired, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(desired) == 0 {
		return supported[0]
	}
	// Match can return a synthesized tag; index into supported for the
	// canonical one.
	_, idx, _ := matcher.Match(desired...)
	return supported[idx]
}

func weekStartFor(tag language.Tag) string {
	if region, _ := tag.Region(); region.String() == "US" || region.String() == "BR" {
		return "sunday"
	}
	return "monday"
}

func timeFormatFor(tag language.Tag) string {
	if region, _ := tag.Region(); region.String() == "US" {
		return "12h"
	}
	return "24h"
}

package doctemplate

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// calendarNames holds month and weekday names for one language.
type calendarNames struct {
	months      [12]string
	monthsShort [12]string
	days        [7]string // Sunday first
	daysShort   [7]string
}

var calendars = map[string]calendarNames{
	"en": {
		months:      [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		monthsShort: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		days:        [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		daysShort:   [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	},
	"de": {
		months:      [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"},
		monthsShort: [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"},
		days:        [7]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
		daysShort:   [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
	},
	"fr": {
		months:      [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		monthsShort: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
		days:        [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		daysShort:   [7]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."},
	},
	"it": {
		months:      [12]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno", "luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"},
		monthsShort: [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
		days:        [7]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"},
		daysShort:   [7]string{"dom", "lun", "mar", "mer", "gio", "ven", "sab"},
	},
}

func calendarFor(tag language.Tag) calendarNames {
	base, _ := tag.Base()
	if names, ok := calendars[base.String()]; ok {
		return names
	}
	return calendars["en"]
}

// formatDate renders t with a date-format pattern. Letters are pattern
// tokens, text in single quotes is literal and "''" is a quote.
func formatDate(t time.Time, pattern string, tag language.Tag) (string, error) {
	names := calendarFor(tag)
	var sb strings.Builder

	for i := 0; i < len(pattern); {
		c := pattern[i]

		if c == '\'' {
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				sb.WriteByte('\'')
				i += 2
				continue
			}
			j := i + 1
			for {
				if j >= len(pattern) {
					return "", NewPatternError(pattern, "unterminated quote")
				}
				if pattern[j] == '\'' {
					if j+1 < len(pattern) && pattern[j+1] == '\'' {
						sb.WriteByte('\'')
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(pattern[j])
				j++
			}
			i = j + 1
			continue
		}

		if !isASCIILetter(c) {
			sb.WriteByte(c)
			i++
			continue
		}

		n := 1
		for i+n < len(pattern) && pattern[i+n] == c {
			n++
		}
		if err := writeDateToken(&sb, t, c, n, names); err != nil {
			return "", NewPatternError(pattern, err.Error())
		}
		i += n
	}
	return sb.String(), nil
}

type unknownTokenError byte

func (e unknownTokenError) Error() string {
	return "unknown pattern letter " + strconv.QuoteRune(rune(e))
}

func writeDateToken(sb *strings.Builder, t time.Time, c byte, n int, names calendarNames) error {
	switch c {
	case 'y':
		if n == 2 {
			sb.WriteString(pad(t.Year()%100, 2))
		} else {
			sb.WriteString(pad(t.Year(), n))
		}
	case 'M':
		switch {
		case n >= 4:
			sb.WriteString(names.months[t.Month()-1])
		case n == 3:
			sb.WriteString(names.monthsShort[t.Month()-1])
		default:
			sb.WriteString(pad(int(t.Month()), n))
		}
	case 'd':
		sb.WriteString(pad(t.Day(), n))
	case 'D':
		sb.WriteString(pad(t.YearDay(), n))
	case 'E':
		if n >= 4 {
			sb.WriteString(names.days[t.Weekday()])
		} else {
			sb.WriteString(names.daysShort[t.Weekday()])
		}
	case 'H':
		sb.WriteString(pad(t.Hour(), n))
	case 'k':
		h := t.Hour()
		if h == 0 {
			h = 24
		}
		sb.WriteString(pad(h, n))
	case 'h':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		sb.WriteString(pad(h, n))
	case 'K':
		sb.WriteString(pad(t.Hour()%12, n))
	case 'm':
		sb.WriteString(pad(t.Minute(), n))
	case 's':
		sb.WriteString(pad(t.Second(), n))
	case 'S':
		sb.WriteString(pad(t.Nanosecond()/int(time.Millisecond), n))
	case 'a':
		if t.Hour() < 12 {
			sb.WriteString("AM")
		} else {
			sb.WriteString("PM")
		}
	case 'z':
		sb.WriteString(t.Format("MST"))
	case 'Z':
		sb.WriteString(t.Format("-0700"))
	case 'X':
		sb.WriteString(t.Format("Z07:00"))
	default:
		return unknownTokenError(c)
	}
	return nil
}

func pad(v, width int) string {
	s := strconv.Itoa(v)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

package doctemplate

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultFormatter renders values with decimal-format and date-format patterns.
//
// Numbers take patterns such as "#,##0.00", "0000" or "CHF #,##0.00".
// Dates take patterns such as "dd.MM.yyyy" or "'le 'dd. MMMM yyyy".
// Either may end in a locale suffix ("_fr", "_de_CH"); unknown suffixes fall
// back to the formatter's locale. Booleans take "Yes_No" patterns and strings
// a printf width such as "10" or "-10".
type DefaultFormatter struct {
	locale language.Tag
}

// NewDefaultFormatter creates a formatter for locale.
func NewDefaultFormatter(locale language.Tag) *DefaultFormatter {
	return &DefaultFormatter{locale: locale}
}

// Locale returns the formatter's default locale.
func (f *DefaultFormatter) Locale() language.Tag {
	return f.locale
}

// Format implements Formatter.
func (f *DefaultFormatter) Format(value any, pattern string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case bool:
		return formatBool(v, pattern), nil
	case string:
		return formatString(v, pattern), nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return f.Format(*v, pattern)
	}
	if pattern == "" {
		return fmt.Sprint(value), nil
	}

	layout, tag := f.splitLocale(pattern)
	if t, ok := value.(time.Time); ok {
		return formatDate(t, layout, tag)
	}
	if n, ok := numeric(value); ok {
		return formatNumber(n, layout, tag)
	}
	return fmt.Sprint(value), nil
}

// splitLocale separates a trailing locale suffix from pattern. Underscores
// inside quoted literals do not start a suffix.
func (f *DefaultFormatter) splitLocale(pattern string) (string, language.Tag) {
	quoted := false
	for i, r := range pattern {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '_' && !quoted:
			if tag, ok := parseLocale(pattern[i+1:]); ok {
				return pattern[:i], tag
			}
			return pattern[:i], f.locale
		}
	}
	return pattern, f.locale
}

var localePattern = regexp.MustCompile(`^([A-Za-z]{2,3})(?:_([A-Za-z]{2}|[0-9]{3}))?$`)

// parseLocale accepts "fr", "FR", "de_CH" and similar.
func parseLocale(s string) (language.Tag, bool) {
	m := localePattern.FindStringSubmatch(s)
	if m == nil {
		return language.Und, false
	}
	id := strings.ToLower(m[1])
	if m[2] != "" {
		id += "-" + strings.ToUpper(m[2])
	}
	tag, err := language.Parse(id)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// ParseLocale parses a locale in either "de_CH" or "de-CH" form.
func ParseLocale(s string) (language.Tag, error) {
	if tag, ok := parseLocale(strings.ReplaceAll(s, "-", "_")); ok {
		return tag, nil
	}
	return language.Und, NewConfigError(ErrMsgInvalidLocale, "", nil)
}

// formatBool picks the left side of "Yes_No" for true and the right side for false.
func formatBool(v bool, pattern string) string {
	if pattern == "" {
		return strconv.FormatBool(v)
	}
	yes, no, _ := strings.Cut(pattern, "_")
	if v {
		return yes
	}
	return no
}

var widthPattern = regexp.MustCompile(`^-?\d*(\.\d+)?$`)

// formatString applies a printf width/precision such as "10", "-10" or ".3".
func formatString(s, pattern string) string {
	if s == "" || pattern == "" || !widthPattern.MatchString(pattern) {
		return s
	}
	return fmt.Sprintf("%"+pattern+"s", s)
}

// numeric converts any integer or float kind to int64, uint64 or float64.
func numeric(value any) (any, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return nil, false
	}
}

// numberPattern is a parsed decimal-format pattern.
type numberPattern struct {
	prefix   string
	suffix   string
	grouping bool
	minInt   int
	minFrac  int
	maxFrac  int
	percent  bool
}

const numberPatternChars = "#0,."

func parseNumberPattern(pattern string) (numberPattern, error) {
	start := strings.IndexAny(pattern, numberPatternChars)
	if start < 0 {
		return numberPattern{}, NewPatternError(pattern, "no digit placeholder")
	}
	end := start
	for end < len(pattern) && strings.IndexByte(numberPatternChars, pattern[end]) >= 0 {
		end++
	}

	intPart, fracPart, _ := strings.Cut(pattern[start:end], ".")
	if strings.ContainsAny(fracPart, ",.") {
		return numberPattern{}, NewPatternError(pattern, "separator in fraction")
	}

	np := numberPattern{
		prefix:   unquote(pattern[:start]),
		suffix:   unquote(pattern[end:]),
		grouping: strings.Contains(intPart, ","),
		minInt:   strings.Count(intPart, "0"),
		minFrac:  strings.Count(fracPart, "0"),
		maxFrac:  len(fracPart),
	}
	np.percent = strings.Contains(np.prefix+np.suffix, "%")
	return np, nil
}

func formatNumber(n any, pattern string, tag language.Tag) (string, error) {
	np, err := parseNumberPattern(pattern)
	if err != nil {
		return "", err
	}

	if np.percent {
		switch v := n.(type) {
		case int64:
			n = float64(v) * 100
		case uint64:
			n = float64(v) * 100
		case float64:
			n = v * 100
		}
	}
	if f, ok := n.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return fmt.Sprint(f), nil
	}

	opts := []number.Option{
		number.MinFractionDigits(np.minFrac),
		number.MaxFractionDigits(np.maxFrac),
	}
	if np.minInt > 1 {
		opts = append(opts, number.MinIntegerDigits(np.minInt))
	}
	if !np.grouping {
		opts = append(opts, number.NoSeparator())
	}

	p := message.NewPrinter(tag)
	return np.prefix + p.Sprint(number.Decimal(n, opts...)) + np.suffix, nil
}

// unquote removes single-quote literal markers; "''" is a literal quote.
func unquote(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
		}
	}
	return sb.String()
}

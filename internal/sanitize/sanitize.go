// Package sanitize cleans raw request input before it is bound or rendered.
package sanitize

import (
	"errors"
	"html"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Kind selects the cleaning rule applied by Input.
type Kind string

const (
	String Kind = "string"
	Email  Kind = "email"
	Int    Kind = "int"
	Float  Kind = "float"
	URL    Kind = "url"
	HTML   Kind = "html"
	// Text strips tags and control characters but leaves entities alone. It
	// is for values that are stored and escaped later, when rendered.
	Text Kind = "text"
)

// ErrInvalid is returned by the typed parsers when input cannot be cleaned into a value.
var ErrInvalid = errors.New("invalid input")

var (
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	intRe      = regexp.MustCompile(`[^0-9+\-]`)
	floatRe    = regexp.MustCompile(`[^0-9+\-.eE]`)
	emailStrip = regexp.MustCompile(`[^A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~@\[\]\-]`)
)

// Input trims raw and applies the rule for kind. Unknown kinds are treated as String.
func Input(raw string, kind Kind) string {
	s := strings.TrimSpace(raw)
	switch kind {
	case Email:
		return emailStrip.ReplaceAllString(s, "")
	case Int:
		return intRe.ReplaceAllString(s, "")
	case Float:
		return floatRe.ReplaceAllString(s, "")
	case URL:
		return urlClean(s)
	case HTML:
		return html.EscapeString(s)
	case Text:
		return stripControl(tagRe.ReplaceAllString(s, ""))
	default:
		return html.EscapeString(stripControl(tagRe.ReplaceAllString(s, "")))
	}
}

// ParseInt cleans raw and parses it as a base-10 integer.
func ParseInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(Input(raw, Int), 10, 64)
	if err != nil {
		return 0, ErrInvalid
	}
	return n, nil
}

// ParseFloat cleans raw and parses it as a float.
func ParseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(Input(raw, Float), 64)
	if err != nil {
		return 0, ErrInvalid
	}
	return f, nil
}

// ParseEmail cleans raw and checks it is a bare address.
func ParseEmail(raw string) (string, error) {
	s := Input(raw, Email)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", ErrInvalid
	}
	return s, nil
}

func urlClean(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return u.String()
	}
	return ""
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Rel values carried by the X-Link header.
const (
	RelPrevious = "previous"
	RelCurrent  = "current"
	RelNext     = "next"
)

// Link parse errors
var (
	ErrEmptyLink      = errors.New("link header is empty")
	ErrMalformedLink  = errors.New("link header is malformed")
	ErrMissingCurrent = errors.New("link header has no current rel")
)

// Link is one page reference.
type Link struct {
	URL string
}

// SessionsLink holds the month pages around the sessions currently shown.
type SessionsLink struct {
	Previous Link
	Current  Link
	Next     Link
}

// Month returns the month query value of the current page, if any.
func (l SessionsLink) Month() string {
	return monthOf(l.Current.URL)
}

func monthOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("month")
}

// ParseLink parses a header of the form
//
//	</sessions?month=X>; rel="previous", </sessions?month=Y>; rel="current", </sessions?month=Z>; rel="next"
//
// Unknown rels are ignored. previous and next may be absent; current may not.
func ParseLink(header string) (SessionsLink, error) {
	if strings.TrimSpace(header) == "" {
		return SessionsLink{}, ErrEmptyLink
	}

	var link SessionsLink
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		target, rel, err := parseLinkValue(part)
		if err != nil {
			return SessionsLink{}, err
		}
		switch rel {
		case RelPrevious:
			link.Previous = Link{URL: target}
		case RelCurrent:
			link.Current = Link{URL: target}
		case RelNext:
			link.Next = Link{URL: target}
		}
	}
	if link.Current.URL == "" {
		return SessionsLink{}, ErrMissingCurrent
	}
	return link, nil
}

func parseLinkValue(part string) (string, string, error) {
	params := strings.Split(part, ";")
	target := strings.TrimSpace(params[0])
	if len(target) < 2 || target[0] != '<' || target[len(target)-1] != '>' {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedLink, part)
	}
	target = strings.TrimSpace(target[1 : len(target)-1])
	if target == "" {
		return "", "", fmt.Errorf("%w: empty url in %q", ErrMalformedLink, part)
	}

	for _, p := range params[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		rel := strings.Trim(strings.TrimSpace(value), `"`)
		if rel == "" {
			break
		}
		return target, strings.ToLower(rel), nil
	}
	return "", "", fmt.Errorf("%w: no rel in %q", ErrMalformedLink, part)
}

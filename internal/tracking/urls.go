package tracking

import (
	"net/url"
	"strings"
)

const (
	OpenPath        = "/api/email/tracking/open"
	ClickPath       = "/api/email/tracking/click"
	UnsubscribePath = "/api/email/unsubscribe"

	trackingSegment = "/api/email/tracking/"
)

// Link types recorded with click events.
const (
	LinkVideo   = "video"
	LinkWebsite = "website"
	LinkButton  = "button"
	LinkPlain   = "link"
)

// URLs builds the public tracking and unsubscribe links for one deployment.
type URLs struct {
	BaseURL string
}

func (u URLs) base() string {
	return strings.TrimRight(u.BaseURL, "/")
}

func (u URLs) Open(campaignID, email string) string {
	q := url.Values{"c": {campaignID}, "e": {email}}
	return u.base() + OpenPath + "?" + q.Encode()
}

func (u URLs) Click(campaignID, email, linkType, target string) string {
	q := url.Values{"c": {campaignID}, "e": {email}, "type": {linkType}, "url": {target}}
	return u.base() + ClickPath + "?" + q.Encode()
}

func (u URLs) Unsubscribe(email string) string {
	q := url.Values{"e": {email}}
	return u.base() + UnsubscribePath + "?" + q.Encode()
}

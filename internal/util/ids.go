package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewCampaignID returns a sortable campaign id ("cmp_" + ULID).
func NewCampaignID() string {
	return "cmp_" + newULID()
}

// NewSendID identifies one dispatch run in logs and record events.
func NewSendID() string {
	return "snd_" + newULID()
}

func newULID() string {
	t := time.Now().UTC()
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

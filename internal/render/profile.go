package render

import "strings"

type Mode int

const (
	ModeStandard Mode = iota
	ModeGmail
)

// ClientProfile describes what a family of mail clients can display.
type ClientProfile struct {
	Name         string
	Mode         Mode
	RowTolerance float64
	TextMinPx    float64
	TextMaxPx    float64
	HeadingMinPx float64
	HeadingMaxPx float64
}

var (
	GmailProfile = ClientProfile{
		Name: "gmail", Mode: ModeGmail, RowTolerance: 15,
		TextMinPx: 14, TextMaxPx: 24, HeadingMinPx: 18, HeadingMaxPx: 36,
	}
	StandardProfile = ClientProfile{
		Name: "standard", Mode: ModeStandard, RowTolerance: 10,
		TextMinPx: 14, TextMaxPx: 48, HeadingMinPx: 18, HeadingMaxPx: 48,
	}
)

func ProfileByName(name string) (ClientProfile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case GmailProfile.Name:
		return GmailProfile, true
	case StandardProfile.Name:
		return StandardProfile, true
	}
	return ClientProfile{}, false
}

// ClientClassifier picks a rendering profile for a recipient address.
type ClientClassifier interface {
	Classify(email string) ClientProfile
}

// DomainClassifier keys profiles by the address's domain.
type DomainClassifier struct {
	Profiles map[string]ClientProfile
	Default  ClientProfile
}

func NewDomainClassifier() *DomainClassifier {
	return &DomainClassifier{
		Profiles: map[string]ClientProfile{
			"gmail.com":      GmailProfile,
			"googlemail.com": GmailProfile,
		},
		Default: StandardProfile,
	}
}

func (c *DomainClassifier) Classify(email string) ClientProfile {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return c.Default
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if p, ok := c.Profiles[domain]; ok {
		return p
	}
	return c.Default
}

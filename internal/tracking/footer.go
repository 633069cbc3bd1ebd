package tracking

import (
	_ "embed"
	"fmt"
	"maps"
	"strings"

	"github.com/osteele/liquid"
)

//go:embed footer.liquid
var DefaultFooterTemplate string

const footerMarker = "data-mailout-footer"

type SocialLink struct {
	Name    string
	URL     string
	IconURL string
}

// Branding is the optional signature block shown above the unsubscribe line.
type Branding struct {
	Enabled     bool
	CompanyName string
	Address     string
	LogoURL     string
	WebsiteURL  string
	Social      []SocialLink
}

// Footer renders the per-recipient footer from a Liquid template. The
// template sees branded, company_name, address, logo_url, website_url,
// social (name, url, icon_url) and unsubscribe_url.
type Footer struct {
	tpl  *liquid.Template
	base liquid.Bindings
}

// NewFooter parses src, or the embedded default when src is blank.
func NewFooter(src string, b Branding) (*Footer, error) {
	if strings.TrimSpace(src) == "" {
		src = DefaultFooterTemplate
	}
	tpl, serr := liquid.NewEngine().ParseString(src)
	if serr != nil {
		return nil, fmt.Errorf("parse footer template: %w", serr)
	}

	social := make([]map[string]any, 0, len(b.Social))
	for _, s := range b.Social {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		social = append(social, map[string]any{"name": s.Name, "url": s.URL, "icon_url": s.IconURL})
	}
	return &Footer{
		tpl: tpl,
		base: liquid.Bindings{
			"branded":      b.Enabled,
			"company_name": b.CompanyName,
			"address":      b.Address,
			"logo_url":     b.LogoURL,
			"website_url":  b.WebsiteURL,
			"social":       social,
		},
	}, nil
}

func (f *Footer) Render(unsubscribeURL string) (string, error) {
	bindings := maps.Clone(f.base)
	bindings["unsubscribe_url"] = unsubscribeURL
	out, serr := f.tpl.RenderString(bindings)
	if serr != nil {
		return "", fmt.Errorf("render footer: %w", serr)
	}
	return strings.TrimSpace(out), nil
}

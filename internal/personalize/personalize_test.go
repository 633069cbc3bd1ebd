package personalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailout/internal/domain"
)

func TestPersonalize(t *testing.T) {
	t.Parallel()

	ada := domain.Recipient{ID: 7, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}

	tests := []struct {
		name   string
		in     string
		r      domain.Recipient
		escape bool
		want   string
	}{
		{name: "all placeholders", in: "{{firstName}}|{{lastName}}|{{fullName}}|{{email}}", r: ada, want: "Ada|Lovelace|Ada Lovelace|ada@example.com"},
		{name: "repeated", in: "{{firstName}} {{firstName}}", r: ada, want: "Ada Ada"},
		{name: "no placeholders", in: "Hello there", r: ada, want: "Hello there"},
		{name: "unknown left alone", in: "{{company}} {{ firstName }}", r: ada, want: "{{company}} {{ firstName }}"},
		{name: "missing last name", in: "Dear {{fullName}},", r: domain.Recipient{FirstName: "Ada"}, want: "Dear Ada,"},
		{name: "empty values", in: "Hi {{firstName}}!", r: domain.Recipient{}, want: "Hi !"},
		{name: "raw markup", in: "<b>{{firstName}}</b>", r: domain.Recipient{FirstName: "<i>x</i>"}, want: "<b><i>x</i></b>"},
		{name: "escaped markup", in: "<b>{{firstName}}</b>", r: domain.Recipient{FirstName: "<i>x</i> & co"}, escape: true, want: "<b>&lt;i&gt;x&lt;/i&gt; &amp; co</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Personalize(tt.in, tt.r, tt.escape))
		})
	}
}

func TestPersonalizerEscapesOnlyHTML(t *testing.T) {
	t.Parallel()

	r := domain.Recipient{FirstName: "Tom & Jerry", Email: "tj@example.com"}
	got := Personalizer{EscapeHTML: true}.Apply(Content{
		Subject: "For {{firstName}}",
		HTML:    "<p>{{firstName}}</p>",
		Text:    "{{firstName}} <{{email}}>",
	}, r)

	assert.Equal(t, "For Tom & Jerry", got.Subject)
	assert.Equal(t, "<p>Tom &amp; Jerry</p>", got.HTML)
	assert.Equal(t, "Tom & Jerry <tj@example.com>", got.Text)
}

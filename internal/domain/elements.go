package domain

type ElementType string

const (
	ElementText    ElementType = "text"
	ElementImage   ElementType = "image"
	ElementVideo   ElementType = "video"
	ElementButton  ElementType = "button"
	ElementDivider ElementType = "divider"
	ElementHeading ElementType = "heading"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ElementStyle struct {
	Position        *Position `json:"position"`
	Width           float64   `json:"width"`
	Height          float64   `json:"height"`
	FontSize        float64   `json:"fontSize,omitempty"`
	FontWeight      string    `json:"fontWeight,omitempty"`
	FontFamily      string    `json:"fontFamily,omitempty"`
	FontStyle       string    `json:"fontStyle,omitempty"`
	TextDecoration  string    `json:"textDecoration,omitempty"`
	Color           string    `json:"color,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Padding         float64   `json:"padding,omitempty"`
	BorderRadius    float64   `json:"borderRadius,omitempty"`
	TextAlign       string    `json:"textAlign,omitempty"`
}

type VideoData struct {
	Platform     string `json:"platform,omitempty"`
	URL          string `json:"url,omitempty"`
	VideoID      string `json:"videoId,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Title        string `json:"title,omitempty"`
}

type ButtonData struct {
	URL string `json:"url,omitempty"`
}

// EditorElement is one absolutely positioned node from the visual editor.
type EditorElement struct {
	ID           string       `json:"id"`
	Type         ElementType  `json:"type"`
	Content      string       `json:"content"`
	Style        ElementStyle `json:"style"`
	VideoData    *VideoData   `json:"videoData,omitempty"`
	ButtonData   *ButtonData  `json:"buttonData,omitempty"`
	HeadingLevel int          `json:"headingLevel,omitempty"`
}

// Renderable reports whether the element has the geometry needed for layout.
func (e EditorElement) Renderable() bool {
	return e.Style.Position != nil && e.Style.Width > 0 && e.Style.Height > 0
}

type CanvasSettings struct {
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	BackgroundColor string  `json:"backgroundColor"`
}

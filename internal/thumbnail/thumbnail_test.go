package thumbnail

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComposeDrawsPlayButton(t *testing.T) {
	t.Parallel()

	out := Compose(solid(100, 100, color.RGBA{R: 255, A: 255}), 600, 400)
	require.Equal(t, image.Rect(0, 0, 600, 400), out.Bounds())

	corner := out.RGBAAt(2, 2)
	assert.InDelta(t, 255, int(corner.R), 2, "source fills the canvas")
	assert.InDelta(t, 0, int(corner.G), 2)

	center := out.RGBAAt(300, 200)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, center, "triangle is white")

	// Inside the 60px disc but left of the triangle.
	disc := out.RGBAAt(250, 200)
	assert.InDelta(t, 51, int(disc.R), 3, "80 percent black over red")
	assert.Equal(t, uint8(0), disc.G)

	// Outside the disc.
	outside := out.RGBAAt(300, 100)
	assert.InDelta(t, 255, int(outside.R), 2)
}

func TestComposeWithoutSource(t *testing.T) {
	t.Parallel()

	out := Compose(nil, 40, 40)
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(0, 0))
}

func TestSize(t *testing.T) {
	t.Parallel()

	w, h, err := Size(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultWidth, DefaultHeight}, []int{w, h})

	_, _, err = Size(MaxDimension+1, 10)
	assert.ErrorIs(t, err, ErrDimensions)
	_, _, err = Size(-5, 10)
	assert.ErrorIs(t, err, ErrDimensions)
}

func TestFetcherGenerate(t *testing.T) {
	t.Parallel()

	src := pngBytes(t, solid(20, 10, color.RGBA{B: 255, A: 255}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/still.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(src)
		case "/text":
			_, _ = w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := &Fetcher{HTTP: srv.Client()}
	out, err := f.Generate(context.Background(), srv.URL+"/still.png", 120, 80)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())

	_, err = f.Generate(context.Background(), srv.URL+"/missing", 0, 0)
	assert.ErrorContains(t, err, "status 404")

	_, err = f.Generate(context.Background(), srv.URL+"/text", 0, 0)
	assert.ErrorContains(t, err, "decode image")

	_, err = f.Generate(context.Background(), "ftp://example.com/x.png", 0, 0)
	assert.ErrorIs(t, err, ErrSourceURL)
}

func TestFetcherRejectsOversizedSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)

	f := &Fetcher{HTTP: srv.Client(), MaxBytes: 32}
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "exceeds 32 bytes")
}

// pngHeader returns a PNG that declares w x h truecolor pixels and
// carries no image data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8], ihdr[9] = 8, 2

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsHugeDeclaredSize(t *testing.T) {
	t.Parallel()

	_, err := Decode(pngHeader(16000, 16000))
	assert.ErrorIs(t, err, ErrSourceTooLarge)
	assert.ErrorContains(t, err, "16000x16000")

	_, err = Decode(pngHeader(20, 9000))
	assert.ErrorIs(t, err, ErrSourceTooLarge)

	img, err := Decode(pngBytes(t, solid(40, 30, color.White)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestFetcherRejectsHugeSourceBeforeDecoding(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader(16000, 16000))
	}))
	t.Cleanup(srv.Close)

	f := &Fetcher{HTTP: srv.Client()}
	_, err := f.Generate(context.Background(), srv.URL+"/bomb.png", 0, 0)
	assert.ErrorIs(t, err, ErrSourceTooLarge)
}

func TestNewFetcherRefusesInternalAddresses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, solid(4, 4, color.White)))
	}))
	t.Cleanup(srv.Close)

	_, err := NewFetcher().Fetch(context.Background(), srv.URL+"/still.png")
	assert.ErrorIs(t, err, ErrPrivateSource)
}

func TestPublicOnly(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{
		"127.0.0.1:80",
		"10.1.2.3:443",
		"172.16.0.9:80",
		"192.168.1.1:80",
		"169.254.169.254:80",
		"0.0.0.0:80",
		"[::1]:443",
		"[fe80::1]:80",
		"[fd00::1]:80",
		"[::ffff:127.0.0.1]:80",
	} {
		assert.ErrorIs(t, publicOnly("tcp", addr, nil), ErrPrivateSource, addr)
	}
	for _, addr := range []string{"93.184.216.34:443", "[2606:4700::1111]:443"} {
		assert.NoError(t, publicOnly("tcp", addr, nil), addr)
	}
}

func TestClientReturnsCompositeURL(t *testing.T) {
	t.Parallel()

	var got probeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/api/video/generate-thumbnail", time.Second)
	out := c.Thumbnail(context.Background(), "https://img.youtube.com/vi/abc/hqdefault.jpg", 400, 300)

	assert.Equal(t, "https://img.youtube.com/vi/abc/hqdefault.jpg", got.ThumbnailURL)
	assert.Equal(t, srv.URL+"/api/video/generate-thumbnail?h=300&url=https%3A%2F%2Fimg.youtube.com%2Fvi%2Fabc%2Fhqdefault.jpg&w=400", out)
}

func TestClientFallsBack(t *testing.T) {
	t.Parallel()

	const plain = "https://img.youtube.com/vi/abc/hqdefault.jpg"
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{name: "not an image", handler: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":false}`))
		}},
		{name: "slow", handler: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			c := NewClient(srv.URL, 100*time.Millisecond)
			assert.Equal(t, plain, c.Thumbnail(context.Background(), plain, 400, 300))
		})
	}
}

func TestClientWithoutEndpoint(t *testing.T) {
	t.Parallel()

	var c *Client
	assert.Equal(t, "x.jpg", c.Thumbnail(context.Background(), "x.jpg", 1, 1))
	assert.Equal(t, "x.jpg", (&Client{}).Thumbnail(context.Background(), "x.jpg", 1, 1))
}

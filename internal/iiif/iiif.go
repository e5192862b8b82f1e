// Package iiif derives IIIF Image API URLs for scanned book assets.
//
// Nothing in this package touches the filesystem or the network: an Image is
// trusted metadata (a relative TIFF path plus a checksum supplied by the
// pipeline stage that produced it), and every URL is rebuilt on each read by
// string concatenation against the configured viewer base URL.
package iiif

import "fmt"

const (
	// BufferPx is the margin added on every side of a region by Buffer.
	BufferPx = 50

	// LineWidth is the sentinel width used for text lines, which span the
	// full page width by convention.
	LineWidth = 9999

	thumbnailWidth       = 200
	regionThumbnailWidth = 500
	bufferWidth          = 150
)

// Image references one physical raster asset by relative path. The checksum
// is metadata recorded by the producing pipeline stage and is never verified
// here.
type Image struct {
	Tif string `json:"tif"`
	MD5 string `json:"md5,omitempty"`
}

// URLs is the set of viewer endpoints derived for an image or region.
type URLs struct {
	IIIFBase  string `json:"iiif_base,omitempty"`
	WebURL    string `json:"web_url"`
	Thumbnail string `json:"thumbnail"`
	FullTif   string `json:"full_tif,omitempty"`
	Buffer    string `json:"buffer,omitempty"`
}

// Base returns the IIIF identifier URL for the image: the viewer base URL
// joined with the stored relative path.
func (im Image) Base(baseURL string) string {
	return baseURL + im.Tif
}

// URLs derives the full-resolution, thumbnail and raw-format endpoints for a
// whole image.
func (im Image) URLs(baseURL string) URLs {
	base := im.Base(baseURL)
	return URLs{
		IIIFBase:  base,
		WebURL:    base + "/full/full/0/default.jpg",
		Thumbnail: fmt.Sprintf("%s/full/%d,/0/default.jpg", base, thumbnailWidth),
		FullTif:   base + "/full/full/0/default.tif",
	}
}

// Box is a pixel region in absolute page coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Region renders the box as an IIIF region parameter.
func (b Box) Region() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.W, b.H)
}

// Buffered expands the box by BufferPx on every side, clamping the origin at
// zero so the region never starts off-canvas.
func (b Box) Buffered() Box {
	return Box{
		X: max(b.X-BufferPx, 0),
		Y: max(b.Y-BufferPx, 0),
		W: b.W + 2*BufferPx,
		H: b.H + 2*BufferPx,
	}
}

// RegionURLs derives viewer endpoints for a region of a parent image. The
// buffer view shows the region with surrounding context at a reduced size.
func RegionURLs(iiifBase string, box Box) URLs {
	region := box.Region()
	return URLs{
		WebURL:    fmt.Sprintf("%s/%s/full/0/default.jpg", iiifBase, region),
		Thumbnail: fmt.Sprintf("%s/%s/%d,/0/default.jpg", iiifBase, region, regionThumbnailWidth),
		FullTif:   fmt.Sprintf("%s/%s/full/0/default.tif", iiifBase, region),
		Buffer:    fmt.Sprintf("%s/%s/%d,/0/default.jpg", iiifBase, box.Buffered().Region(), bufferWidth),
	}
}

// LineBox computes the absolute region of a text line from its vertical
// extent. Horizontal extent is unbounded by convention, so the box always
// starts at x=0 and spans the sentinel width.
func LineBox(yMin, yMax int) Box {
	return Box{X: 0, Y: yMin, W: LineWidth, H: yMax - yMin}
}

package iiif

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testBase = "https://images.example.org/iiif/"

func TestImageURLs(t *testing.T) {
	t.Parallel()

	im := Image{Tif: "thodgkin/spread_0001.tif", MD5: "d41d8cd98f00b204e9800998ecf8427e"}
	urls := im.URLs(testBase)

	assert.Equal(t, testBase+"thodgkin/spread_0001.tif", urls.IIIFBase)
	assert.Equal(t, urls.IIIFBase+"/full/full/0/default.jpg", urls.WebURL)
	assert.Equal(t, urls.IIIFBase+"/full/200,/0/default.jpg", urls.Thumbnail)
	assert.Equal(t, urls.IIIFBase+"/full/full/0/default.tif", urls.FullTif)
	assert.Empty(t, urls.Buffer, "whole images have no buffer view")
}

func TestBoxRegion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5,10,20,30", Box{X: 5, Y: 10, W: 20, H: 30}.Region())
}

func TestBufferedClampsOrigin(t *testing.T) {
	t.Parallel()

	// Origin closer to the edge than the margin must clamp to zero.
	b := Box{X: 5, Y: 10, W: 20, H: 30}.Buffered()
	assert.Equal(t, Box{X: 0, Y: 0, W: 120, H: 130}, b)

	// Far from the edge the margin applies symmetrically.
	b = Box{X: 400, Y: 300, W: 60, H: 40}.Buffered()
	assert.Equal(t, Box{X: 350, Y: 250, W: 160, H: 140}, b)
}

func TestRegionURLs(t *testing.T) {
	t.Parallel()

	base := testBase + "b/page_02.tif"
	urls := RegionURLs(base, Box{X: 100, Y: 200, W: 50, H: 25})

	assert.Equal(t, base+"/100,200,50,25/full/0/default.jpg", urls.WebURL)
	assert.Equal(t, base+"/100,200,50,25/500,/0/default.jpg", urls.Thumbnail)
	assert.Equal(t, base+"/100,200,50,25/full/0/default.tif", urls.FullTif)
	assert.Equal(t, base+"/50,150,150,125/150,/0/default.jpg", urls.Buffer)
}

func TestLineBox(t *testing.T) {
	t.Parallel()

	b := LineBox(10, 40)
	assert.Equal(t, Box{X: 0, Y: 10, W: LineWidth, H: 30}, b)
}

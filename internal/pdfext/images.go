package pdfext

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/jpeg"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	xdraw "golang.org/x/image/draw"
)

// maxColorSpaceDepth bounds recursive color-space resolution so a malformed
// document with self-referential entries fails closed instead of recursing
// without limit.
const maxColorSpaceDepth = 8

// maxRasterEdge is the largest width/height handed to the recognition
// capability; bigger rasters are downscaled first.
const maxRasterEdge = 2000

// jpegQuality used when re-encoding raw rasters.
const jpegQuality = 85

// pageImage is one embedded image recovered from a page, encoded as JPEG
// (either re-encoded from a raw raster or passed through when the stream is
// already a self-describing JPEG/JP2).
type pageImage struct {
	Data []byte
}

// extractPageImages locates the image XObjects in a page's resource
// dictionary and decodes each to a portable raster. Images with unsupported
// filter/color-space/bit-depth combinations are skipped, logged, non-fatal.
// Discovery order is the sorted resource-name order, which is stable.
func extractPageImages(ctx *model.Context, pageNr int) []pageImage {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil || pageDict == nil {
		return nil
	}

	resources := dereferenceDict(ctx, pageDict["Resources"])
	if resources == nil {
		return nil
	}
	csTable := dereferenceDict(ctx, resources["ColorSpace"])
	xObjects := dereferenceDict(ctx, resources["XObject"])
	if xObjects == nil {
		return nil
	}

	names := make([]string, 0, len(xObjects))
	for name := range xObjects {
		names = append(names, name)
	}
	sort.Strings(names)

	var images []pageImage
	for _, name := range names {
		sd, _, err := ctx.DereferenceStreamDict(xObjects[name])
		if err != nil || sd == nil {
			continue
		}
		if subtype, found := sd.Find("Subtype"); !found || !isName(subtype, "Image") {
			continue
		}

		data := decodeImageStream(ctx, sd, csTable)
		if data == nil {
			log.Printf("[PDF] page %d: skipping undecodable image %s", pageNr, name)
			continue
		}
		images = append(images, pageImage{Data: data})
	}
	return images
}

// decodeImageStream converts one image XObject stream to encoded raster
// bytes, or nil when the combination is not decodable.
func decodeImageStream(ctx *model.Context, sd *types.StreamDict, csTable types.Dict) []byte {
	filters := filterNames(ctx, sd)

	// JPEG/JPEG2000 streams self-describe their color space; pass through.
	for _, f := range filters {
		if f == "DCTDecode" || f == "DCT" || f == "JPXDecode" {
			if len(sd.Raw) == 0 {
				return nil
			}
			return sd.Raw
		}
	}

	// Beyond this point only no-filter or pure deflate streams at 8 bits per
	// component are handled.
	for _, f := range filters {
		if f != "FlateDecode" && f != "Fl" {
			return nil
		}
	}
	if intAttr(ctx, sd, "BitsPerComponent", 8) != 8 {
		return nil
	}

	width := intAttr(ctx, sd, "Width", 0)
	height := intAttr(ctx, sd, "Height", 0)
	if width <= 0 || height <= 0 {
		return nil
	}

	csObj, _ := sd.Find("ColorSpace")
	channels := colorSpaceChannels(resolveColorSpaceName(ctx, csObj, csTable, 0))
	if channels == 0 {
		return nil
	}

	pixels := sd.Raw
	if len(filters) > 0 {
		decoded, err := inflate(sd.Raw)
		if err != nil {
			return nil
		}
		pixels = decoded
	}

	return rawPixelsToJPEG(pixels, width, height, channels)
}

// filterNames returns the stream's filter chain as names. A single name and
// an array of names are both accepted.
func filterNames(ctx *model.Context, sd *types.StreamDict) []string {
	obj, found := sd.Find("Filter")
	if !found {
		return nil
	}
	obj = dereference(ctx, obj)

	switch v := obj.(type) {
	case types.Name:
		return []string{v.Value()}
	case types.Array:
		var names []string
		for _, item := range v {
			if n, ok := dereference(ctx, item).(types.Name); ok {
				names = append(names, n.Value())
			}
		}
		return names
	}
	return nil
}

// resolveColorSpaceName resolves a color-space object to a device space
// name. A name may be indirect, may index into the page's named color-space
// table, and a table entry may itself be an array whose first element is the
// base space. Resolution past maxColorSpaceDepth fails closed.
func resolveColorSpaceName(ctx *model.Context, obj types.Object, csTable types.Dict, depth int) string {
	if depth > maxColorSpaceDepth || obj == nil {
		return ""
	}
	obj = dereference(ctx, obj)

	switch v := obj.(type) {
	case types.Name:
		name := v.Value()
		if strings.HasPrefix(name, "Device") {
			return name
		}
		if csTable != nil {
			if entry, found := csTable.Find(name); found {
				return resolveColorSpaceName(ctx, entry, csTable, depth+1)
			}
		}
		return ""
	case types.Array:
		if len(v) == 0 {
			return ""
		}
		return resolveColorSpaceName(ctx, v[0], csTable, depth+1)
	}
	return ""
}

// colorSpaceChannels maps a resolved device space to its channel count.
// Anything unresolved abandons decoding for the image.
func colorSpaceChannels(name string) int {
	switch name {
	case "DeviceGray":
		return 1
	case "DeviceRGB":
		return 3
	case "DeviceCMYK":
		return 4
	}
	return 0
}

// dereference resolves indirect references, returning other objects as-is.
func dereference(ctx *model.Context, obj types.Object) types.Object {
	if obj == nil {
		return nil
	}
	if _, ok := obj.(types.IndirectRef); ok {
		resolved, err := ctx.Dereference(obj)
		if err != nil {
			return nil
		}
		return resolved
	}
	return obj
}

// dereferenceDict resolves an object expected to be a dictionary.
func dereferenceDict(ctx *model.Context, obj types.Object) types.Dict {
	if d, ok := dereference(ctx, obj).(types.Dict); ok {
		return d
	}
	return nil
}

// intAttr reads an integer stream attribute with a default.
func intAttr(ctx *model.Context, sd *types.StreamDict, key string, def int) int {
	obj, found := sd.Find(key)
	if !found {
		return def
	}
	if i, ok := dereference(ctx, obj).(types.Integer); ok {
		return i.Value()
	}
	return def
}

func isName(obj types.Object, name string) bool {
	n, ok := obj.(types.Name)
	return ok && n.Value() == name
}

// inflate decodes a zlib-wrapped deflate stream.
func inflate(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// rawPixelsToJPEG reinterprets decoded stream bytes as a raw raster of the
// given dimensions and channel count, converts to RGB, and encodes JPEG.
// Handles both plain pixel data and PNG-predictor-encoded data (Predictor
// 10..15 adds one filter-type byte per row, so total size is
// height * (rowBytes + 1)).
func rawPixelsToJPEG(data []byte, width, height, channels int) []byte {
	rowBytes := width * channels
	expectedPlain := rowBytes * height
	expectedPNG := (rowBytes + 1) * height

	hasPNGPredictor := len(data) == expectedPNG && len(data) != expectedPlain
	if !hasPNGPredictor && len(data) < expectedPlain {
		return nil
	}

	pixels := data
	if hasPNGPredictor {
		pixels = decodePNGPredictor(data, width, height, channels)
		if pixels == nil {
			return nil
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcOff := y * rowBytes
		dstOff := y * img.Stride
		for x := 0; x < width; x++ {
			var r, g, b byte
			switch channels {
			case 1:
				r = pixels[srcOff]
				g, b = r, r
				srcOff++
			case 3:
				r = pixels[srcOff]
				g = pixels[srcOff+1]
				b = pixels[srcOff+2]
				srcOff += 3
			case 4:
				c := int(pixels[srcOff])
				m := int(pixels[srcOff+1])
				yy := int(pixels[srcOff+2])
				k := int(pixels[srcOff+3])
				r = cmykByte(c, k)
				g = cmykByte(m, k)
				b = cmykByte(yy, k)
				srcOff += 4
			}
			img.Pix[dstOff] = r
			img.Pix[dstOff+1] = g
			img.Pix[dstOff+2] = b
			img.Pix[dstOff+3] = 255
			dstOff += 4
		}
	}

	out := downscaleForRecognition(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil
	}
	return buf.Bytes()
}

// cmykByte converts one additive-inverted CMYK component pair to RGB.
func cmykByte(component, k int) byte {
	v := 255 - component - k
	if v < 0 {
		v = 0
	}
	return byte(v)
}

// downscaleForRecognition scales rasters whose longest edge exceeds
// maxRasterEdge before they are handed to recognition.
func downscaleForRecognition(img *image.NRGBA) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxRasterEdge {
		return img
	}

	scale := float64(maxRasterEdge) / float64(longest)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// decodePNGPredictor reverses PNG row filters on deflate-decoded data.
// Each row starts with a filter-type byte (0=None, 1=Sub, 2=Up, 3=Average,
// 4=Paeth) followed by rowBytes of filtered pixel data. Returns the
// unfiltered raw pixel data without the filter bytes.
func decodePNGPredictor(data []byte, width, height, channels int) []byte {
	rowBytes := width * channels
	srcStride := rowBytes + 1
	out := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		srcRow := data[y*srcStride : y*srcStride+srcStride]
		filterType := srcRow[0]
		filtered := srcRow[1:]
		dstRow := out[y*rowBytes : y*rowBytes+rowBytes]

		var prevRow []byte
		if y > 0 {
			prevRow = out[(y-1)*rowBytes : (y-1)*rowBytes+rowBytes]
		}

		switch filterType {
		case 0:
			copy(dstRow, filtered)
		case 1: // Sub
			for i := 0; i < rowBytes; i++ {
				left := byte(0)
				if i >= channels {
					left = dstRow[i-channels]
				}
				dstRow[i] = filtered[i] + left
			}
		case 2: // Up
			for i := 0; i < rowBytes; i++ {
				up := byte(0)
				if prevRow != nil {
					up = prevRow[i]
				}
				dstRow[i] = filtered[i] + up
			}
		case 3: // Average
			for i := 0; i < rowBytes; i++ {
				left := 0
				if i >= channels {
					left = int(dstRow[i-channels])
				}
				up := 0
				if prevRow != nil {
					up = int(prevRow[i])
				}
				dstRow[i] = filtered[i] + byte((left+up)/2)
			}
		case 4: // Paeth
			for i := 0; i < rowBytes; i++ {
				left := byte(0)
				if i >= channels {
					left = dstRow[i-channels]
				}
				up := byte(0)
				if prevRow != nil {
					up = prevRow[i]
				}
				upLeft := byte(0)
				if prevRow != nil && i >= channels {
					upLeft = prevRow[i-channels]
				}
				dstRow[i] = filtered[i] + paethPredictor(left, up, upLeft)
			}
		default:
			copy(dstRow, filtered)
		}
	}
	return out
}

// paethPredictor implements the Paeth predictor used in PNG filtering.
func paethPredictor(a, b, c byte) byte {
	ia, ib, ic := int(a), int(b), int(c)
	p := ia + ib - ic
	pa := p - ia
	if pa < 0 {
		pa = -pa
	}
	pb := p - ib
	if pb < 0 {
		pb = -pb
	}
	pc := p - ic
	if pc < 0 {
		pc = -pc
	}
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

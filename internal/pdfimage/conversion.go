package pdfimage

import "image"

// convertToRGBA converts a decoded Cairo image surface (as reported by
// a RasterEngine) into a standard image.RGBA, handling each of the
// three surface formats poppler can hand back:
//
//   - A8 (grayscale, IsGrayscale): one alpha/luminance byte per pixel,
//     treated as opaque grayscale.
//   - ARGB32 (HasAlpha): little-endian BGRA, alpha-premultiplied.
//   - RGB24 (neither flag): little-endian BGRx, always opaque.
func convertToRGBA(m ImageMapping) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))

	switch {
	case m.AlreadyRGBA:
		convertStraightRGBA(img, m)
	case m.IsGrayscale:
		convertGrayscale(img, m)
	case m.HasAlpha:
		convertARGB32(img, m)
	default:
		convertRGB24(img, m)
	}
	return img
}

// convertStraightRGBA copies already-decoded straight-alpha RGBA bytes
// in directly, no format conversion needed.
func convertStraightRGBA(dst *image.RGBA, m ImageMapping) {
	for y := 0; y < m.Height; y++ {
		srcRow := y * m.Stride
		dstRow := dst.PixOffset(0, y)
		n := m.Width * 4
		if srcRow+n > len(m.SurfaceData) {
			n = len(m.SurfaceData) - srcRow
		}
		if n <= 0 {
			continue
		}
		copy(dst.Pix[dstRow:dstRow+n], m.SurfaceData[srcRow:srcRow+n])
	}
}

func convertGrayscale(dst *image.RGBA, m ImageMapping) {
	for y := 0; y < m.Height; y++ {
		srcRow := y * m.Stride
		dstRow := dst.PixOffset(0, y)
		for x := 0; x < m.Width; x++ {
			if srcRow+x >= len(m.SurfaceData) {
				break
			}
			v := m.SurfaceData[srcRow+x]
			i := dstRow + x*4
			dst.Pix[i+0] = v
			dst.Pix[i+1] = v
			dst.Pix[i+2] = v
			dst.Pix[i+3] = 0xff
		}
	}
}

func convertARGB32(dst *image.RGBA, m ImageMapping) {
	for y := 0; y < m.Height; y++ {
		srcRow := y * m.Stride
		dstRow := dst.PixOffset(0, y)
		for x := 0; x < m.Width; x++ {
			si := srcRow + x*4
			if si+3 >= len(m.SurfaceData) {
				break
			}
			b := m.SurfaceData[si+0]
			g := m.SurfaceData[si+1]
			r := m.SurfaceData[si+2]
			a := m.SurfaceData[si+3]

			// Cairo's ARGB32 is premultiplied; unpremultiply so the
			// result is plain straight-alpha RGBA.
			if a != 0 && a != 0xff {
				r = unpremultiplyByte(r, a)
				g = unpremultiplyByte(g, a)
				b = unpremultiplyByte(b, a)
			}

			di := dstRow + x*4
			dst.Pix[di+0] = r
			dst.Pix[di+1] = g
			dst.Pix[di+2] = b
			dst.Pix[di+3] = a
		}
	}
}

func convertRGB24(dst *image.RGBA, m ImageMapping) {
	for y := 0; y < m.Height; y++ {
		srcRow := y * m.Stride
		dstRow := dst.PixOffset(0, y)
		for x := 0; x < m.Width; x++ {
			si := srcRow + x*4
			if si+2 >= len(m.SurfaceData) {
				break
			}
			b := m.SurfaceData[si+0]
			g := m.SurfaceData[si+1]
			r := m.SurfaceData[si+2]

			di := dstRow + x*4
			dst.Pix[di+0] = r
			dst.Pix[di+1] = g
			dst.Pix[di+2] = b
			dst.Pix[di+3] = 0xff
		}
	}
}

func unpremultiplyByte(c, a byte) byte {
	v := int(c) * 255 / int(a)
	if v > 255 {
		return 255
	}
	return byte(v)
}

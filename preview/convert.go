package preview

// yuv420ToRGB converts a tightly-packed YUV420P frame to interleaved RGB
// using the BT.601 studio-range coefficients.
func yuv420ToRGB(raw []byte, width, height int) []byte {
	ySize := width * height
	uSize := ySize / 4

	yPlane := raw[:ySize]
	uPlane := raw[ySize : ySize+uSize]
	vPlane := raw[ySize+uSize : ySize+2*uSize]

	out := make([]byte, ySize*3)
	uvWidth := width / 2

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			y := int(yPlane[row*width+col]) - 16
			u := int(uPlane[(row/2)*uvWidth+col/2]) - 128
			v := int(vPlane[(row/2)*uvWidth+col/2]) - 128

			r := clampByte((298*y + 409*v + 128) >> 8)
			g := clampByte((298*y - 100*u - 208*v + 128) >> 8)
			b := clampByte((298*y + 516*u + 128) >> 8)

			offset := (row*width + col) * 3
			out[offset] = r
			out[offset+1] = g
			out[offset+2] = b
		}
	}
	return out
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// scaleRGB resizes an interleaved RGB buffer using bilinear interpolation
// per channel, the same technique the teacher's YUV plane scaler uses.
func scaleRGB(src []byte, srcW, srcH, dstW, dstH int) []byte {
	if srcW == dstW && srcH == dstH {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}

	out := make([]byte, dstW*dstH*3)
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)

	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			srcX := float64(x) * xRatio
			srcY := float64(y) * yRatio

			x1 := int(srcX)
			y1 := int(srcY)
			x2 := x1 + 1
			y2 := y1 + 1
			if x2 >= srcW {
				x2 = srcW - 1
			}
			if y2 >= srcH {
				y2 = srcH - 1
			}

			fx := srcX - float64(x1)
			fy := srcY - float64(y1)

			for c := 0; c < 3; c++ {
				p11 := float64(src[(y1*srcW+x1)*3+c])
				p12 := float64(src[(y1*srcW+x2)*3+c])
				p21 := float64(src[(y2*srcW+x1)*3+c])
				p22 := float64(src[(y2*srcW+x2)*3+c])

				top := p11*(1-fx) + p12*fx
				bottom := p21*(1-fx) + p22*fx
				pixel := top*(1-fy) + bottom*fy

				out[(y*dstW+x)*3+c] = byte(pixel + 0.5)
			}
		}
	}
	return out
}

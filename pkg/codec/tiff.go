package codec

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"

	"github.com/fluostack/fluostack/pkg/plane"
	"github.com/fluostack/fluostack/pkg/stack"
)

// Multi-page baseline TIFF writer.
//
// golang.org/x/image/tiff encodes single-IFD files only, so the stack
// artifact is written here directly: little-endian, uncompressed, one IFD
// per frame chained through the next-IFD pointer, a single strip per frame.
// Grayscale frames keep the plane's original bit depth (8/16-bit unsigned
// or 32-bit IEEE float, recorded via SampleFormat); the optional composite
// is appended as an 8-bit RGB page. Any baseline-capable reader — including
// the analysis tools the stack is produced for — sees the frames in role
// order with their exact sample values.

// TIFF tag and type constants (TIFF 6.0 baseline).
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagSampleFormat     = 339

	typeByte  = 1
	typeASCII = 2
	typeShort = 3
	typeLong  = 4

	compressionNone   = 1
	photometricGray   = 1 // BlackIsZero
	photometricRGB    = 2
	sampleFormatUint  = 1
	sampleFormatFloat = 3
)

// ifdEntry is one 12-byte IFD field.
type ifdEntry struct {
	tag, typ uint16
	count    uint32
	value    uint32 // inline value or offset into the data area
}

// tiffFrame is the encoded form of one page: its pixel strip, description
// string, and any field values too large to inline.
type tiffFrame struct {
	width, height int
	gray          bool
	kind          plane.SampleKind
	strip         []byte
	label         string
}

// EncodeStackTIFF writes the stack as a multi-page TIFF. Frame order is
// the stack's frame order; the composite, when present, becomes the final
// page.
func EncodeStackTIFF(w io.Writer, s *stack.Stack) error {
	frames := make([]tiffFrame, 0, len(s.Frames)+1)
	for _, f := range s.Frames {
		frames = append(frames, tiffFrame{
			width:  f.Plane.Width,
			height: f.Plane.Height,
			gray:   true,
			kind:   f.Plane.Kind,
			strip:  encodeGrayStrip(f.Plane),
			label:  f.Label,
		})
	}
	if s.Composite != nil {
		b := s.Composite.Bounds()
		frames = append(frames, tiffFrame{
			width:  b.Dx(),
			height: b.Dy(),
			gray:   false,
			strip:  encodeRGBStrip(s.Composite),
			label:  "composite",
		})
	}

	var buf bytes.Buffer
	le := binary.LittleEndian

	// Header: byte order, magic, first IFD offset (patched below).
	buf.Write([]byte{'I', 'I', 42, 0})
	firstIFDAt := buf.Len()
	buf.Write([]byte{0, 0, 0, 0})

	// Data area: strips, description strings, and external field values.
	type frameOffsets struct {
		strip, desc, bits uint32
		descLen           uint32
	}
	offs := make([]frameOffsets, len(frames))
	for i, f := range frames {
		pad(&buf)
		offs[i].strip = uint32(buf.Len())
		buf.Write(f.strip)

		pad(&buf)
		offs[i].desc = uint32(buf.Len())
		desc := append([]byte(f.label), 0)
		offs[i].descLen = uint32(len(desc))
		buf.Write(desc)

		if !f.gray {
			// BitsPerSample for RGB is three SHORTs and cannot inline.
			pad(&buf)
			offs[i].bits = uint32(buf.Len())
			for j := 0; j < 3; j++ {
				var u16 [2]byte
				le.PutUint16(u16[:], 8)
				buf.Write(u16[:])
			}
		}
	}

	// IFDs, contiguous at the end so each next-IFD pointer is known.
	pad(&buf)
	ifdOffsets := make([]uint32, len(frames))
	at := uint32(buf.Len())
	for i := range frames {
		ifdOffsets[i] = at
		at += ifdSize()
	}
	le.PutUint32(buf.Bytes()[firstIFDAt:firstIFDAt+4], ifdOffsets[0])

	for i, f := range frames {
		entries := frameEntries(f, offs[i].strip, offs[i].desc, offs[i].descLen, offs[i].bits)
		var u16 [2]byte
		le.PutUint16(u16[:], uint16(len(entries)))
		buf.Write(u16[:])
		for _, e := range entries {
			var raw [12]byte
			le.PutUint16(raw[0:2], e.tag)
			le.PutUint16(raw[2:4], e.typ)
			le.PutUint32(raw[4:8], e.count)
			if e.typ == typeShort && e.count == 1 {
				le.PutUint16(raw[8:10], uint16(e.value))
			} else {
				le.PutUint32(raw[8:12], e.value)
			}
			buf.Write(raw[:])
		}
		var next uint32
		if i+1 < len(frames) {
			next = ifdOffsets[i+1]
		}
		var u32 [4]byte
		le.PutUint32(u32[:], next)
		buf.Write(u32[:])
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// frameEntries builds the IFD fields for one page, in ascending tag order
// as the format requires.
func frameEntries(f tiffFrame, stripOff, descOff, descLen, bitsOff uint32) []ifdEntry {
	var (
		bits         ifdEntry
		photometric  uint32 = photometricRGB
		samplesPerPx uint32 = 3
		format       uint32 = sampleFormatUint
	)
	if f.gray {
		photometric = photometricGray
		samplesPerPx = 1
		bits = ifdEntry{tagBitsPerSample, typeShort, 1, uint32(f.kind.BitDepth())}
		if f.kind == plane.KindFloat32 {
			format = sampleFormatFloat
		}
	} else {
		bits = ifdEntry{tagBitsPerSample, typeShort, 3, bitsOff}
	}

	// Every role label plus its NUL terminator exceeds the 4-byte inline
	// limit ("base" is the shortest at 5), so the description always
	// lives in the data area.
	desc := ifdEntry{tagImageDescription, typeASCII, descLen, descOff}

	entries := []ifdEntry{
		{tagImageWidth, typeLong, 1, uint32(f.width)},
		{tagImageLength, typeLong, 1, uint32(f.height)},
		bits,
		{tagCompression, typeShort, 1, compressionNone},
		{tagPhotometric, typeShort, 1, photometric},
		desc,
		{tagStripOffsets, typeLong, 1, stripOff},
		{tagSamplesPerPixel, typeShort, 1, samplesPerPx},
		{tagRowsPerStrip, typeLong, 1, uint32(f.height)},
		{tagStripByteCounts, typeLong, 1, uint32(len(f.strip))},
		{tagSampleFormat, typeShort, 1, format},
	}
	return entries
}

// ifdSize returns the encoded size of one frame's IFD: entry count word,
// 12 bytes per entry, next-IFD pointer. Every page carries the same 11
// fields.
func ifdSize() uint32 {
	const numEntries = 11
	return 2 + numEntries*12 + 4
}

// encodeGrayStrip serializes a plane's samples at their original bit depth,
// little-endian.
func encodeGrayStrip(p *plane.Plane) []byte {
	switch p.Kind {
	case plane.KindUint8:
		strip := make([]byte, len(p.Samples))
		for i, v := range p.Samples {
			strip[i] = uint8(clampTo(v, 255))
		}
		return strip
	case plane.KindUint16:
		strip := make([]byte, 2*len(p.Samples))
		for i, v := range p.Samples {
			binary.LittleEndian.PutUint16(strip[i*2:], uint16(clampTo(v, 65535)))
		}
		return strip
	default: // KindFloat32
		strip := make([]byte, 4*len(p.Samples))
		for i, v := range p.Samples {
			binary.LittleEndian.PutUint32(strip[i*4:], math.Float32bits(float32(v)))
		}
		return strip
	}
}

// encodeRGBStrip serializes the composite as interleaved 8-bit RGB,
// dropping the constant alpha channel.
func encodeRGBStrip(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	strip := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			strip = append(strip, row[x*4], row[x*4+1], row[x*4+2])
		}
	}
	return strip
}

func clampTo(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// pad aligns the buffer to a 16-bit boundary as TIFF requires for field
// values.
func pad(buf *bytes.Buffer) {
	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
}

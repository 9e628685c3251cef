// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package theme

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// pngMagic is the 8-byte PNG file signature.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNotPNG is returned when the uploaded data doesn't start with the PNG
// magic bytes.
var ErrNotPNG = errors.New("not a PNG file")

// ErrBadIHDR is returned when the PNG's IHDR chunk is missing or
// malformed.
var ErrBadIHDR = errors.New("malformed PNG IHDR chunk")

// Dimensions is a decoded width/height pair.
type Dimensions struct {
	Width  uint32
	Height uint32
}

// ReadPNGDimensions validates the PNG magic bytes and reads width/height
// straight out of the IHDR chunk, without decoding pixel data.
func ReadPNGDimensions(data []byte) (Dimensions, error) {
	if len(data) < 8+8+13 {
		return Dimensions{}, ErrNotPNG
	}
	for i, b := range pngMagic {
		if data[i] != b {
			return Dimensions{}, ErrNotPNG
		}
	}

	// First chunk: 4-byte length, 4-byte type, then data.
	chunkLen := binary.BigEndian.Uint32(data[8:12])
	chunkType := string(data[12:16])
	if chunkType != "IHDR" {
		return Dimensions{}, ErrBadIHDR
	}
	if chunkLen < 13 || len(data) < 16+13 {
		return Dimensions{}, ErrBadIHDR
	}

	width := binary.BigEndian.Uint32(data[16:20])
	height := binary.BigEndian.Uint32(data[20:24])
	if width == 0 || height == 0 {
		return Dimensions{}, ErrBadIHDR
	}
	return Dimensions{Width: width, Height: height}, nil
}

// Limits on icon/logo image dimensions.
const (
	MinIconWidth  = 16
	MinIconHeight = 16
	MaxIconWidth  = 2000
	MaxIconHeight = 2000
	MinLogoWidth  = 64
	MinLogoHeight = 64
	MaxLogoWidth  = 2048
	MaxLogoHeight = 2048
)

// ValidateIcon checks an icon upload's magic bytes, IHDR, and size caps.
func ValidateIcon(data []byte) (Dimensions, error) {
	dim, err := ReadPNGDimensions(data)
	if err != nil {
		return dim, err
	}
	if dim.Width < MinIconWidth || dim.Width > MaxIconWidth || dim.Height < MinIconHeight || dim.Height > MaxIconHeight {
		return dim, fmt.Errorf("icon %dx%d is outside the allowed range %d-%d", dim.Width, dim.Height, MinIconWidth, MaxIconWidth)
	}
	return dim, nil
}

// ValidateLogo checks a logo upload's magic bytes, IHDR, and size caps.
func ValidateLogo(data []byte) (Dimensions, error) {
	dim, err := ReadPNGDimensions(data)
	if err != nil {
		return dim, err
	}
	if dim.Width < MinLogoWidth || dim.Width > MaxLogoWidth || dim.Height < MinLogoHeight || dim.Height > MaxLogoHeight {
		return dim, fmt.Errorf("logo %dx%d is outside the allowed range %d-%d", dim.Width, dim.Height, MinLogoWidth, MaxLogoWidth)
	}
	return dim, nil
}

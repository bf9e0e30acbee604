package styles

import (
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// minContrast is the ratio a chatter color must reach against BgPrimary.
const minContrast = 3.0

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// RGB is a color with channels in 0..255.
type RGB struct {
	R, G, B float64
}

// fallbackColors are used for chatters without a (readable) color.
var fallbackColors = []string{
	"#FF7F50", "#1E90FF", "#2E8B57", "#DAA520", "#FF69B4",
	"#9ACD32", "#5F9EA0", "#D2691E", "#8A2BE2", "#00FF7F",
}

// IsValidHexColor checks if a string is a #RRGGBB color code.
func IsValidHexColor(hex string) bool {
	return hexColorRegex.MatchString(hex)
}

// ParseHex parses a #RRGGBB color.
func ParseHex(hex string) (RGB, error) {
	if !IsValidHexColor(hex) {
		return RGB{}, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return RGB{}, err
	}
	return RGB{float64(v >> 16 & 0xff), float64(v >> 8 & 0xff), float64(v & 0xff)}, nil
}

// Hex formats c as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", uint8(math.Round(c.R)), uint8(math.Round(c.G)), uint8(math.Round(c.B)))
}

// ReadableColor returns color, lightened until it contrasts with the chat
// background. Invalid colors pick from a palette keyed by login.
func ReadableColor(color, login string) lipgloss.Color {
	c, err := ParseHex(color)
	if err != nil {
		h := fnv.New32a()
		_, _ = h.Write([]byte(login))
		return lipgloss.Color(fallbackColors[h.Sum32()%uint32(len(fallbackColors))])
	}
	bg, _ := ParseHex(string(BgPrimary))
	for range 10 {
		if contrastRatio(c, bg) >= minContrast {
			break
		}
		c = lighten(c, 0.2)
	}
	return lipgloss.Color(c.Hex())
}

// lighten mixes c toward white by amount.
func lighten(c RGB, amount float64) RGB {
	return RGB{
		R: c.R + (255-c.R)*amount,
		G: c.G + (255-c.G)*amount,
		B: c.B + (255-c.B)*amount,
	}
}

func contrastRatio(fg, bg RGB) float64 {
	l1 := relativeLuminance(fg)
	l2 := relativeLuminance(bg)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05)
}

func relativeLuminance(c RGB) float64 {
	r := linearize(c.R / 255.0)
	g := linearize(c.G / 255.0)
	b := linearize(c.B / 255.0)
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func linearize(v float64) float64 {
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

package theme

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	tint "github.com/lrstanley/bubbletint/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultName is the built-in theme used when no override is provided.
const DefaultName = "roster-light"

// Token represents a semantic color slot within the CLI.
type Token string

const (
	ColorTextPrimary   Token = "text.primary"
	ColorTextSecondary Token = "text.secondary"
	ColorTextMuted     Token = "text.muted"
	ColorBorder        Token = "border"
	ColorSurface       Token = "surface"
	ColorAccent        Token = "accent"
	ColorAccentText    Token = "accent.text"
	ColorSelected      Token = "selected"
	ColorSuccess       Token = "success"
	ColorWarning       Token = "warning"
	ColorDanger        Token = "danger"
)

// Color stores light and dark variants for adaptive rendering.
type Color struct {
	Light string
	Dark  string
}

// Adaptive converts the color into a lipgloss adaptive color.
func (c Color) Adaptive() lipgloss.AdaptiveColor {
	light, dark := strings.TrimSpace(c.Light), strings.TrimSpace(c.Dark)
	switch {
	case light == "" && dark == "":
		return lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#000000"}
	case light == "":
		light = dark
	case dark == "":
		dark = light
	}
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// Palette is a named set of colors.
type Palette struct {
	Name        string
	DisplayName string
	About       string
	Colors      map[Token]Color
}

// Color returns the color for token, falling back to the default palette.
func (p Palette) Color(token Token) Color {
	if c, ok := p.Colors[token]; ok && (c.Light != "" || c.Dark != "") {
		return c
	}
	if c, ok := defaultPalette().Colors[token]; ok {
		return c
	}
	return Color{Light: "#FFFFFF", Dark: "#000000"}
}

// Adaptive returns the lipgloss adaptive color for the provided token.
func (p Palette) Adaptive(token Token) lipgloss.AdaptiveColor {
	return p.Color(token).Adaptive()
}

// ForegroundStyle returns a style with the foreground set to token.
func (p Palette) ForegroundStyle(token Token) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Adaptive(token))
}

type contextKey struct{}

var (
	registryOnce sync.Once
	registryMu   sync.RWMutex
	palettes     map[string]Palette
	current      Palette
)

// ContextWithPalette stores the palette on the context.
func ContextWithPalette(ctx context.Context, p Palette) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the palette stored on the context or the current palette.
func FromContext(ctx context.Context) Palette {
	if ctx != nil {
		if p, ok := ctx.Value(contextKey{}).(Palette); ok {
			return p
		}
	}
	return Current()
}

// Available returns the registered theme names, sorted.
func Available() []string {
	ensureRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(palettes))
	for k := range palettes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get returns the palette with the provided name.
func Get(name string) (Palette, bool) {
	ensureRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := palettes[sanitizeName(name)]
	return p, ok
}

// SetCurrent sets the active palette. An empty name selects the default.
func SetCurrent(name string) error {
	ensureRegistry()
	name = sanitizeName(name)
	if name == "" {
		name = DefaultName
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := palettes[name]
	if !ok {
		return fmt.Errorf("unknown color theme %q", name)
	}
	current = p
	return nil
}

// Current returns the active palette.
func Current() Palette {
	ensureRegistry()
	registryMu.RLock()
	defer registryMu.RUnlock()
	return current
}

func ensureRegistry() {
	registryOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()

		palettes = map[string]Palette{}
		register(defaultPalette())
		register(darkPalette())
		current = palettes[DefaultName]

		for _, t := range tint.DefaultTints() {
			p := paletteFromTint(t)
			if _, builtin := palettes[sanitizeName(p.Name)]; builtin {
				continue
			}
			register(p)
		}
	})
}

// paletteFromTint maps a terminal color scheme onto the table tokens.
func paletteFromTint(t *tint.Tint) Palette {
	if t == nil {
		return Palette{}
	}
	fg := normalizeHex(tintHex(t.Fg))
	bg := normalizeHex(tintHex(t.Bg))
	muted := normalizeHex(tintHex(t.BrightBlack))
	accent := normalizeHex(tintHex(t.BrightBlue))
	selected := normalizeHex(tintHex(t.Cyan))

	colors := map[Token]Color{
		ColorTextPrimary:   single(fg),
		ColorTextSecondary: Color{Light: darken(fg, 0.25), Dark: lighten(fg, 0.2)},
		ColorTextMuted:     Color{Light: darken(muted, 0.35), Dark: lighten(muted, 0.35)},
		ColorBorder:        Color{Light: darken(muted, 0.15), Dark: lighten(muted, 0.25)},
		ColorSurface:       single(bg),
		ColorAccent:        single(accent),
		ColorAccentText:    single(contrast(accent)),
		ColorSelected:      single(selected),
		ColorSuccess:       single(tintHex(t.Green)),
		ColorWarning:       single(tintHex(t.Yellow)),
		ColorDanger:        single(tintHex(t.Red)),
	}
	for k, c := range colors {
		if c.Light == "" && c.Dark == "" {
			delete(colors, k)
		}
	}
	return Palette{
		Name:        sanitizeName(t.ID),
		DisplayName: strings.TrimSpace(t.DisplayName),
		Colors:      colors,
	}
}

// tintHex returns the hex value of a tint color, or "" when the tint leaves it unset.
func tintHex(c *tint.Color) string {
	if c == nil {
		return ""
	}
	return c.Hex()
}

func register(p Palette) {
	p.Name = sanitizeName(p.Name)
	if p.Name == "" {
		return
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
	palettes[p.Name] = p
}

func sanitizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Derive builds a palette from base with its accent replaced by accentHex.
// Accent text, selection and borders follow from the new accent.
func Derive(name string, base Palette, accentHex string) (Palette, error) {
	accent := normalizeHex(accentHex)
	if _, err := colorful.Hex(accent); err != nil {
		return Palette{}, fmt.Errorf("invalid accent color %q: %w", accentHex, err)
	}
	colors := make(map[Token]Color, len(base.Colors))
	for k, v := range base.Colors {
		colors[k] = v
	}
	colors[ColorAccent] = single(accent)
	colors[ColorAccentText] = single(contrast(accent))
	colors[ColorSelected] = Color{Light: darken(accent, 0.2), Dark: lighten(accent, 0.2)}
	colors[ColorBorder] = Color{Light: lighten(accent, 0.6), Dark: darken(accent, 0.6)}
	return Palette{Name: sanitizeName(name), DisplayName: name, Colors: colors}, nil
}

// SetCurrentAccent derives a palette from the current one and activates it.
func SetCurrentAccent(accentHex string) error {
	p, err := Derive("custom", Current(), accentHex)
	if err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	palettes[p.Name] = p
	current = p
	return nil
}

func single(hex string) Color {
	h := normalizeHex(hex)
	return Color{Light: h, Dark: h}
}

func normalizeHex(hex string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(hex, "#"))
	switch len(trimmed) {
	case 0:
		return ""
	case 3:
		var b strings.Builder
		b.WriteString("#")
		for _, r := range trimmed {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		return strings.ToUpper(b.String())
	}
	if len(trimmed) > 6 {
		trimmed = trimmed[:6]
	}
	return "#" + strings.ToUpper(trimmed)
}

// contrast picks near black or near white text for a background.
func contrast(hex string) string {
	c, err := colorful.Hex(normalizeHex(hex))
	if err != nil {
		return "#121418"
	}
	r, g, b := c.LinearRgb()
	if 0.2126*r+0.7152*g+0.0722*b > 0.55 {
		return "#121418"
	}
	return "#F8F8F8"
}

func lighten(hex string, amount float64) string {
	return blend(hex, colorful.Color{R: 1, G: 1, B: 1}, amount)
}

func darken(hex string, amount float64) string {
	return blend(hex, colorful.Color{}, amount)
}

func blend(hex string, with colorful.Color, amount float64) string {
	h := normalizeHex(hex)
	c, err := colorful.Hex(h)
	if err != nil {
		return h
	}
	amount = max(0, min(1, amount))
	return c.BlendLab(with, amount).Clamped().Hex()
}

func defaultPalette() Palette {
	return Palette{
		Name:        DefaultName,
		DisplayName: "Roster Light",
		Colors: map[Token]Color{
			ColorTextPrimary:   single("#1B1F24"),
			ColorTextSecondary: single("#444C56"),
			ColorTextMuted:     single("#6E7781"),
			ColorBorder:        single("#D0D7DE"),
			ColorSurface:       single("#F6F8FA"),
			ColorAccent:        single("#0969DA"),
			ColorAccentText:    single("#FFFFFF"),
			ColorSelected:      single("#8250DF"),
			ColorSuccess:       single("#1A7F37"),
			ColorWarning:       single("#9A6700"),
			ColorDanger:        single("#CF222E"),
		},
	}
}

func darkPalette() Palette {
	return Palette{
		Name:        "roster-dark",
		DisplayName: "Roster Dark",
		Colors: map[Token]Color{
			ColorTextPrimary:   single("#E6EDF3"),
			ColorTextSecondary: single("#C9D1D9"),
			ColorTextMuted:     single("#8B949E"),
			ColorBorder:        single("#30363D"),
			ColorSurface:       single("#161B22"),
			ColorAccent:        single("#58A6FF"),
			ColorAccentText:    single("#0D1117"),
			ColorSelected:      single("#BC8CFF"),
			ColorSuccess:       single("#3FB950"),
			ColorWarning:       single("#D29922"),
			ColorDanger:        single("#F85149"),
		},
	}
}

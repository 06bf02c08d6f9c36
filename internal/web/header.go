package web

import (
	"fmt"
	"html/template"
	"io"
	"regexp"
)

// HeaderOptions configures the styled page header.
type HeaderOptions struct {
	Title    string
	Subtitle string
	Icon     string
	Badge    string
	// Align is "left", "center" or "right"; anything else centers.
	Align string
	// Theme is "dark" or "light".
	Theme       string
	Accent      string
	BgFrom      string
	BgTo        string
	PadY        int
	ShowDivider bool
}

// DefaultHeader returns the dashboard's standard header for title.
func DefaultHeader(title string) HeaderOptions {
	return HeaderOptions{
		Title:       title,
		Icon:        "📊",
		Align:       "center",
		Theme:       "dark",
		Accent:      "#22d3ee",
		BgFrom:      "#0c1c2a",
		BgTo:        "#003366",
		PadY:        18,
		ShowDivider: true,
	}
}

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20})$`)

type headerView struct {
	Title       string
	Subtitle    string
	Icon        string
	Badge       string
	Justify     template.CSS
	TextAlign   template.CSS
	Accent      template.CSS
	Txt         template.CSS
	Sub         template.CSS
	Glow        template.CSS
	CardFrom    template.CSS
	CardTo      template.CSS
	PadY        int
	ShowDivider bool
}

func color(v, fallback string) template.CSS {
	if colorPattern.MatchString(v) {
		return template.CSS(v)
	}
	return template.CSS(fallback)
}

func (o HeaderOptions) view() headerView {
	defaults := DefaultHeader("")

	v := headerView{
		Title:       o.Title,
		Subtitle:    o.Subtitle,
		Icon:        o.Icon,
		Badge:       o.Badge,
		Justify:     "center",
		TextAlign:   "center",
		Accent:      color(o.Accent, defaults.Accent),
		PadY:        o.PadY,
		ShowDivider: o.ShowDivider,
	}
	if v.PadY < 0 {
		v.PadY = defaults.PadY
	}

	switch o.Align {
	case "left":
		v.Justify, v.TextAlign = "flex-start", "left"
	case "right":
		v.Justify, v.TextAlign = "flex-end", "left"
	}

	if o.Theme == "light" {
		v.Txt = "#0b1a29"
		v.Sub = "rgba(11,26,41,.75)"
		v.CardFrom, v.CardTo = "#f5f9ff", "#e9f2ff"
		v.Glow = "rgba(34,211,238,.35)"
	} else {
		v.Txt = "#eaf2ff"
		v.Sub = "rgba(234,242,255,.75)"
		v.CardFrom = color(o.BgFrom, defaults.BgFrom)
		v.CardTo = color(o.BgTo, defaults.BgTo)
		v.Glow = "rgba(34,211,238,.25)"
	}
	return v
}

// RenderHeader writes the header markup for o.
func RenderHeader(w io.Writer, o HeaderOptions) error {
	if err := templates.ExecuteTemplate(w, "header", o.view()); err != nil {
		return fmt.Errorf("RenderHeader: %w", err)
	}
	return nil
}

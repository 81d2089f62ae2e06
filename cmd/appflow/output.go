package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type styles struct {
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	header  lipgloss.Style
	muted   lipgloss.Style
	unicode bool
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	s := styles{
		ok:      r.NewStyle(),
		fail:    r.NewStyle(),
		warn:    r.NewStyle(),
		header:  r.NewStyle(),
		muted:   r.NewStyle(),
		unicode: supportsUnicode(w),
	}
	if noColor {
		return s
	}

	s.ok = r.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	s.fail = r.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	s.warn = r.NewStyle().Foreground(lipgloss.Color("214"))
	s.header = r.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	s.muted = r.NewStyle().Foreground(lipgloss.Color("241"))
	return s
}

func (s styles) okMark() string {
	if s.unicode {
		return s.ok.Render("✓")
	}
	return s.ok.Render("OK")
}

func (s styles) failMark() string {
	if s.unicode {
		return s.fail.Render("✗")
	}
	return s.fail.Render("FAIL")
}

func (s styles) warnMark() string {
	if s.unicode {
		return s.warn.Render("⚠")
	}
	return s.warn.Render("WARN")
}

func supportsUnicode(writer any) bool {
	if file, ok := writer.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}

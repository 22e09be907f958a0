package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

func printSubsection(w io.Writer, title string) {
	_, _ = infoColor.Fprintf(w, "  %s\n", title)
}

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printError(w io.Writer, msg string) {
	_, _ = errorColor.Fprintf(w, "✗ %s\n", msg)
}

func printDim(w io.Writer, msg string) {
	_, _ = dimColor.Fprintln(w, msg)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "    %s: ", label)
	fmt.Fprintln(w, value)
}

func printLabelValueWithColor(w io.Writer, label, value string, valueClr *color.Color) {
	_, _ = labelColor.Fprintf(w, "    %s: ", label)
	_, _ = valueClr.Fprintln(w, value)
}

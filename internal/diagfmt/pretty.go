package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"reloc/internal/diag"
	"reloc/internal/source"
)

var (
	errColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	infoColor  = color.New(color.FgCyan, color.Bold)
	noteColor  = color.New(color.FgBlue)
	caretColor = color.New(color.FgGreen, color.Bold)
)

// Pretty renders diagnostics in a human-readable form. Callers are
// expected to Sort() the bag first. Each diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE> [<name>]: <message>
//
// followed by the offending source line with a caret underline, then any
// notes in the same shape.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		printOne(w, d, fs, opts)
	}
}

func printOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	start, _ := fs.Resolve(d.Primary)
	file := fs.Get(d.Primary.File)

	sev := d.Severity.String()
	if opts.Color {
		switch d.Severity {
		case diag.SevError:
			sev = errColor.Sprint(sev)
		case diag.SevWarning:
			sev = warnColor.Sprint(sev)
		default:
			sev = infoColor.Sprint(sev)
		}
	}

	fmt.Fprintf(w, "%s:%d:%d: %s %s [%s]: %s\n",
		formatPath(file, opts.PathMode), start.Line, start.Col,
		sev, d.Code.String(), d.Code.Name(), d.Message)
	printContext(w, file, d.Primary, start, opts)

	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		nStart, _ := fs.Resolve(n.Span)
		nFile := fs.Get(n.Span.File)
		label := "note"
		if opts.Color {
			label = noteColor.Sprint(label)
		}
		fmt.Fprintf(w, "  %s:%d:%d: %s: %s\n",
			formatPath(nFile, opts.PathMode), nStart.Line, nStart.Col, label, n.Msg)
	}
}

// printContext prints the source line and a ^~~~ underline sized to the
// display width of the spanned text.
func printContext(w io.Writer, file *source.File, span source.Span, start source.LineCol, opts PrettyOpts) {
	line := file.GetLine(start.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)

	col := int(start.Col) - 1
	if col < 0 || col > len(line) {
		return
	}
	pad := runewidth.StringWidth(line[:col])
	spanned := int(span.Len())
	if spanned <= 0 || col+spanned > len(line) {
		spanned = 1
	}
	width := runewidth.StringWidth(line[col:min(col+spanned, len(line))])
	if width < 1 {
		width = 1
	}
	caret := "^" + strings.Repeat("~", width-1)
	if opts.Color {
		caret = caretColor.Sprint(caret)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pad), caret)
}

func formatPath(f *source.File, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		return f.FormatPath("absolute", "")
	case PathModeRelative:
		return f.FormatPath("relative", "")
	case PathModeBasename:
		return f.FormatPath("basename", "")
	default:
		return f.FormatPath("auto", "")
	}
}

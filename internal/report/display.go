package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

var (
	errorStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorColor = pterm.FgRed
	warnStyle  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	warnColor  = pterm.FgYellow
	okStyle    = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	locColor   = pterm.FgLightCyan
)

// Display writes one diagnostic with a colored banner.
func Display(w io.Writer, d Diagnostic) {
	style, color := errorStyle, errorColor
	if d.Severity == SeverityWarning {
		style, color = warnStyle, warnColor
	}
	tag := " " + strings.ToUpper(d.Severity.String()) + " "
	if d.Pass != "" {
		tag = fmt.Sprintf(" %s in %s ", strings.ToUpper(d.Severity.String()), d.Pass)
	}
	fmt.Fprintf(w, "%s %s %s\n", style.Sprint(tag), locColor.Sprint(d.Loc.String()), color.Sprint(d.Message))
}

// DisplayError writes an error returned from a pass. Internal compiler errors
// get their own banner.
func DisplayError(w io.Writer, err error) {
	if ice, ok := err.(*InternalError); ok {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Sprint(" ICE "), errorColor.Sprint(ice.Error()))
		fmt.Fprintln(w, "This error was not supposed to happen: the lowered tree is invalid.")
		return
	}
	if fe, ok := err.(*FatalError); ok {
		Display(w, fe.Diagnostic)
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorStyle.Sprint(" ERROR "), errorColor.Sprint(err.Error()))
}

// Summary writes a one-line result of a run.
func Summary(w io.Writer, r *Reporter) {
	var errs, warns int
	for _, d := range r.Diagnostics() {
		if d.Severity == SeverityWarning {
			warns++
		} else {
			errs++
		}
	}
	if errs == 0 {
		fmt.Fprintf(w, "%s %d warning(s)\n", okStyle.Sprint(" OK "), warns)
		return
	}
	fmt.Fprintf(w, "%s %d error(s), %d warning(s)\n", errorStyle.Sprint(" FAILED "), errs, warns)
}

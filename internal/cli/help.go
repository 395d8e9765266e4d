package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

var (
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	flagStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AA00"))
)

// HelpPrinter renders kong help as a title, a usage line and one line per flag.
// The lightshow takes no positional arguments.
func HelpPrinter(_ kong.HelpOptions, ctx *kong.Context) error {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Lightshow 💡"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s\n  %s [flags]  %s\n\n", sectionStyle.Render("Usage:"), ctx.Model.Name, KeyStyle.Render(ctx.Model.Help))
	sb.WriteString(sectionStyle.Render("Flags:"))
	sb.WriteString("\n")
	for _, f := range ctx.Model.Node.Flags {
		sb.WriteString(flagLine(f))
	}
	fmt.Fprintln(ctx.Stdout, sb.String())
	return nil
}

// flagLine renders "  -s, --name=VALUE  help (default: x)".
func flagLine(f *kong.Flag) string {
	name := "--" + f.Name
	if f.Short != 0 {
		name = fmt.Sprintf("-%c, %s", f.Short, name)
	}
	if !f.IsBool() {
		name += "=" + strings.ToUpper(f.FormatPlaceHolder())
	}
	line := "  " + flagStyle.Render(name) + "  " + f.Help
	if f.Default != "" {
		line += " " + KeyStyle.Render("(default: "+f.Default+")")
	}
	return line + "\n"
}

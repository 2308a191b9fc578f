package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/ein-plus/lain/internal/lainerr"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/printers"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

func goodjob(w io.Writer, s string) {
	fmt.Fprintln(w, successStyle.Render(s))
}

func warn(w io.Writer, s string) {
	fmt.Fprintln(w, warnStyle.Render(s))
}

// PrintError writes err and the remedy it carries to w.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render(err.Error()))
	if remedy := lainerr.RemedyOf(err); remedy != "" {
		fmt.Fprintln(w, remedy)
	}
}

// printTable prints a table using the table printer
func printTable(table *metav1.Table, out io.Writer, noHeaders bool) error {
	printer := printers.NewTablePrinter(printers.PrintOptions{
		NoHeaders: noHeaders,
	})

	return printer.PrintObj(table, out)
}

// printObject prints data in JSON or YAML format
func printObject(obj runtime.Object, out io.Writer, format string) error {
	var printer printers.ResourcePrinter
	switch format {
	case "json":
		printer = &printers.JSONPrinter{}
	case "yaml":
		printer = &printers.YAMLPrinter{}
	default:
		return lainerr.New(lainerr.UserInput, nil, "unsupported output format: %s", format)
	}

	return printer.PrintObj(obj, out)
}

func newTable(columns ...string) *metav1.Table {
	defs := make([]metav1.TableColumnDefinition, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, metav1.TableColumnDefinition{Name: c, Type: "string"})
	}
	return &metav1.Table{
		TypeMeta: metav1.TypeMeta{
			Kind:       "Table",
			APIVersion: "meta.k8s.io/v1",
		},
		ColumnDefinitions: defs,
		Rows:              []metav1.TableRow{},
	}
}

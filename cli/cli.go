// Package cli implements the trainhub command line. Commands talk to a
// running manager daemon over its HTTP API.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := errColor.SprintFunc()
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%s %s\n\n", boldRed("error:"), err.Error())
}

func logOKCmd(cmd cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", okColor.Sprintf(format, args...))
}

func logWarnCmd(cmd cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", warnColor.Sprintf(format, args...))
}

func logJSONCmd(cmd cobra.Command, v any) {
	data, err := prettyjson.Marshal(v)
	if err != nil {
		logErrorCmd(cmd, err)

		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\n", string(data))
}

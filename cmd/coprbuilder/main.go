package main

import (
	"github.com/alecthomas/kong"

	"github.com/yahoon/Copr/cmd/coprbuilder/commands"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal()
	ctx := kong.Parse(cli,
		kong.Name("coprbuilder"),
		kong.Description("Build packages on remote mock builders and publish the results."),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}

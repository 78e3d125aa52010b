package root

import (
	"github.com/repairhero/platform/apps/cli/cmd/apikeycmd"
	"github.com/repairhero/platform/apps/cli/cmd/migratecmd"
	"github.com/repairhero/platform/apps/cli/cmd/rolecmd"
	"github.com/repairhero/platform/apps/cli/cmd/tenantcmd"
	"github.com/repairhero/platform/apps/cli/cmd/usercmd"
)

func init() {
	Root().AddCommand(tenantcmd.Command())
	Root().AddCommand(usercmd.Command())
	Root().AddCommand(rolecmd.Command())
	Root().AddCommand(apikeycmd.Command())
	Root().AddCommand(migratecmd.Command())
}

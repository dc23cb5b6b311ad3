package main

import (
	"os"

	imgship "github.com/0xa1bed0/imgship/internal/apps/imgship/cmds"
	"github.com/0xa1bed0/imgship/internal/logs"
	"github.com/0xa1bed0/imgship/internal/runtime"
)

func main() {
	logs.SetComponent("imgship")

	var execErr error

	rt := runtime.New()
	defer rt.Finalize("imgship", &execErr)

	execErr = imgship.Execute(rt, os.Environ())
}

package main

import (
	"context"
	"fmt"
	"os"

	serenitycmder "github.com/papercomputeco/serenity/cmd/serenity"
	"github.com/papercomputeco/serenity/pkg/cliui"
)

func main() {
	cmd := serenitycmder.NewSerenityCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/pavanmanishd/bump"
)

// classesCommand prints the bucket size class of each requested size.
type classesCommand struct {
	sizes *[]int
	align *int
}

func (cmd *classesCommand) run(_ *kingpin.ParseContext) error {
	for _, size := range *cmd.sizes {
		rounded, err := bump.RoundedCapacity(size, 1, *cmd.align)
		if err != nil {
			fmt.Printf("%d: %v\n", size, err)
			continue
		}
		fmt.Printf(
			"%d: class %d, chunk %v, slack %d\n",
			size,
			bump.ClassOf(rounded),
			humanize.IBytes(uint64(rounded)),
			rounded-size,
		)
	}
	return nil
}

func addClassesCommand(app *kingpin.Application) {
	cmd := &classesCommand{}
	classes := app.Command("classes", "Show the bucket size class of each size.").Action(cmd.run)
	cmd.align = classes.Flag("align", "Alignment of the requests.").Default("8").Int()
	cmd.sizes = classes.Arg("size", "Request sizes in bytes.").Required().Ints()
}

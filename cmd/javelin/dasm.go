package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/javelin/vm"
	"github.com/chazu/javelin/vm/dist"
)

var dasmCmd = &cobra.Command{
	Use:   "dasm <program.jvc>",
	Short: "Disassemble a serialized program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", args[0], err)
		}
		prog, err := dist.UnmarshalProgram(data)
		if err != nil {
			return err
		}
		engine := vm.NewEngine(vm.DefaultOptions())
		className := prog.Class
		if className == "" {
			className = "Main"
		}
		owner := vm.NewClass(className, engine.Meta().Object, vm.AccPublic)
		reg := newRegistry(engine, owner)
		for i := range prog.Methods {
			m, err := dist.Link(&prog.Methods[i], owner, reg)
			if err != nil {
				return err
			}
			fmt.Print(vm.Disassemble(m))
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dasmCmd)
}

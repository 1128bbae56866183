package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/javelin/manifest"
	"github.com/chazu/javelin/profile"
	"github.com/chazu/javelin/vm"
	"github.com/chazu/javelin/vm/dist"
)

var runCmd = &cobra.Command{
	Use:   "run <program.jvc>",
	Short: "Execute a serialized program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mf, err := manifest.FindAndLoad(configDir)
		if err != nil {
			return err
		}
		engine := vm.NewEngine(vm.Options{
			MaxFrameDepth:        mf.Engine.MaxFrameDepth,
			InlineFieldAccessors: mf.Engine.InlineFieldAccessors,
		})
		if mf.Profile.Enabled {
			store, err := profile.Open(mf.Profile.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			engine.SetProfileSink(store)
		}

		main, err := loadProgram(engine, args[0])
		if err != nil {
			return err
		}
		res, err := engine.Execute(main, nil, nil)
		if err != nil {
			return fmt.Errorf("uncaught failure: %w", err)
		}
		if main.Return != vm.KindVoid {
			fmt.Println(res)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// builtinRegistry resolves class names against the engine's bootstrapped
// classes plus the program's own class.
type builtinRegistry struct {
	classes map[string]*vm.Class
}

func newRegistry(engine *vm.Engine, owner *vm.Class) *builtinRegistry {
	r := &builtinRegistry{classes: make(map[string]*vm.Class)}
	for _, c := range engine.Meta().Classes() {
		r.classes[c.Name] = c
	}
	r.classes[owner.Name] = owner
	return r
}

func (r *builtinRegistry) ClassByName(name string) *vm.Class { return r.classes[name] }

// loadProgram links every chunk of a program file onto one class and
// returns the entry method.
func loadProgram(engine *vm.Engine, path string) (*vm.Method, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	prog, err := dist.UnmarshalProgram(data)
	if err != nil {
		return nil, err
	}
	className := prog.Class
	if className == "" {
		className = "Main"
	}
	owner := vm.NewClass(className, engine.Meta().Object, vm.AccPublic)
	reg := newRegistry(engine, owner)
	var main *vm.Method
	for i := range prog.Methods {
		m, err := dist.Link(&prog.Methods[i], owner, reg)
		if err != nil {
			return nil, err
		}
		if m.Name == prog.Main {
			main = m
		}
	}
	owner.Seal()
	if main == nil {
		return nil, fmt.Errorf("program has no entry method %q", prog.Main)
	}
	if !main.IsStatic() || len(main.Params) != 0 {
		return nil, fmt.Errorf("entry method %s must be static and take no arguments", main)
	}
	return main, nil
}

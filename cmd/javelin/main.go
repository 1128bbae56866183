// Javelin CLI - run, inspect, and profile serialized bytecode programs.
package main

func main() {
	Execute()
}

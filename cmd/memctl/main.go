// Command memctl inspects memory layouts and exercises the allocators
// built from them.
package main

func main() {
	execute()
}

// Command solestyle runs the SoleStyle storefront server and its
// maintenance tools.
package main

import "github.com/SoleStyle/solestyle/cmd/solestyle/cmd"

func main() {
	cmd.Execute()
}

package main

import "kyri56xcaesar/taskhub/cmd"

func main() {
	cmd.Execute()
}

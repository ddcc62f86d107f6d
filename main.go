package main

import "github.com/yuanshang000/ds2api/cmd"

func main() {
	cmd.Execute()
}

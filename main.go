package main

import "github.com/ValentinKolb/dStruct/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"fmt"

	"github.com/flowcore/engine/internal/buildinfo"
)

func main() {
	info := buildinfo.GetInfo()
	fmt.Println(info.String())
}

package main

import (
	loadgen "github.com/skudasov/bidload"
	"github.com/skudasov/bidload/load"
)

func main() {
	loadgen.Run(load.AttackerFromName, load.CheckFromName, nil, nil)
}

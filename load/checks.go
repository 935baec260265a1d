package load

import loadgen "github.com/skudasov/bidload"

func CheckFromName(name string) loadgen.RuntimeCheckFunc {
	switch name {
	default:
		return nil
	}
}

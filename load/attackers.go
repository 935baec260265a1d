package load

import (
	loadgen "github.com/skudasov/bidload"
	"log"
)

func AttackerFromName(name string) loadgen.Attack {
	switch name {
	case "bid_request":
		return loadgen.WithCSVMonitor(loadgen.WithMonitor(new(BidRequestAttack)))
	default:
		log.Fatalf("unknown attacker type: %s", name)
		return nil
	}
}

package load

const (
	BidRequestLabel = "bid_request"
)

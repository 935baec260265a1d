package load

import (
	"fmt"
	"math/rand"

	gojson "github.com/goccy/go-json"
)

const (
	// SiteID site id of every request
	SiteID = "site-1"
	// DeviceIP device ip of every request, never filtered by the receiver
	DeviceIP = "1.2.3.4"

	minRequestNum = 1
	maxRequestNum = 999999
)

var (
	// Domains site domains a request is drawn from
	Domains = []string{"espn.com", "cnn.com", "nytimes.com", "reddit.com"}
	// UserAgents device user agents a request is drawn from
	UserAgents = []string{"Mozilla/5.0 (iPhone)", "Mozilla/5.0 (Macintosh)", "Mozilla/5.0 (Linux; Android 13)"}
)

// BidRequest simplified bid request sent to the receiver
type BidRequest struct {
	ID     string `json:"id"`
	Site   Site   `json:"site"`
	Device Device `json:"device"`
}

// Site publisher site of a request
type Site struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// Device user device of a request
type Device struct {
	IP string `json:"ip"`
	UA string `json:"ua"`
	// LMT limit ad tracking, 0 or 1
	LMT int `json:"lmt"`
}

// Marshal encodes request as json body
func (b BidRequest) Marshal() ([]byte, error) {
	return gojson.Marshal(b)
}

// ParseBidRequest decodes json body
func ParseBidRequest(data []byte) (BidRequest, error) {
	var b BidRequest
	if err := gojson.Unmarshal(data, &b); err != nil {
		return BidRequest{}, fmt.Errorf("failed to parse bid request: %w", err)
	}
	return b, nil
}

// Generator builds random bid requests, not safe for concurrent use, every VU owns one
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates generator drawing from src
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Next draws a new request
func (g *Generator) Next() BidRequest {
	return BidRequest{
		ID: fmt.Sprintf("req-%d", g.intBetween(minRequestNum, maxRequestNum)),
		Site: Site{
			ID:     SiteID,
			Domain: g.item(Domains),
		},
		Device: Device{
			IP:  DeviceIP,
			UA:  g.item(UserAgents),
			LMT: g.intBetween(0, 1),
		},
	}
}

// intBetween inclusive on both ends
func (g *Generator) intBetween(min, max int) int {
	return min + g.rnd.Intn(max-min+1)
}

func (g *Generator) item(items []string) string {
	return items[g.rnd.Intn(len(items))]
}

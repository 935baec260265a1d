package main

import (
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/mssola/user_agent"
)

const (
	outcomeAccepted = "accepted"
	outcomeFiltered = "filtered"
	outcomeRejected = "rejected"

	filteredIPPrefix = "10.10."
	unknownPlatform  = "unknown"
)

// bidRequest nil sections are rejected
type bidRequest struct {
	ID     string  `json:"id"`
	Site   *site   `json:"site"`
	App    *app    `json:"app"`
	Device *device `json:"device"`
}

type site struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

type app struct {
	Bundle string `json:"bundle"`
}

type device struct {
	IP  string `json:"ip"`
	UA  string `json:"ua"`
	LMT int    `json:"lmt"`
}

// Stats counters of received requests
type Stats struct {
	Outcomes  map[string]int `json:"outcomes"`
	Platforms map[string]int `json:"platforms"`
}

// receiver answers bid requests the way the real receiver does, without the downstream queue
type receiver struct {
	mu    sync.Mutex
	stats Stats
}

func newReceiver() *receiver {
	return &receiver{stats: Stats{
		Outcomes:  map[string]int{},
		Platforms: map[string]int{},
	}}
}

func (rc *receiver) count(outcome string, ua string) {
	platform := unknownPlatform
	if ua != "" {
		if p := user_agent.New(ua).Platform(); p != "" {
			platform = p
		}
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stats.Outcomes[outcome]++
	rc.stats.Platforms[platform]++
}

func (rc *receiver) receiveBid(c echo.Context) error {
	body, err := ioutil.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	var req bidRequest
	if err := gojson.Unmarshal(body, &req); err != nil {
		rc.count(outcomeRejected, "")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json payload"})
	}
	if req.ID == "" || req.Device == nil || (req.Site == nil && req.App == nil) {
		rc.count(outcomeRejected, "")
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "bad request"})
	}
	if req.Device.LMT == 1 || strings.HasPrefix(req.Device.IP, filteredIPPrefix) {
		rc.count(outcomeFiltered, req.Device.UA)
		return c.NoContent(http.StatusNoContent)
	}
	rc.count(outcomeAccepted, req.Device.UA)
	return c.JSON(http.StatusOK, echo.Map{"status": "accepted"})
}

func (rc *receiver) getStats(c echo.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return c.JSON(http.StatusOK, rc.stats)
}

func newServer(rc *receiver) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.POST("/bid-request", rc.receiveBid)
	e.GET("/stats", rc.getStats)
	return e
}

package load

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

const (
	TargetPortEnv     = "TARGET_PORT"
	DefaultTargetPort = "8070"
	DefaultTargetHost = "localhost"
	BidRequestPath    = "/bid-request"

	targetPortKey = "target_port"
)

// TargetPort port of the receiver from TARGET_PORT, empty value means unset
func TargetPort() string {
	v := viper.New()
	v.SetDefault(targetPortKey, DefaultTargetPort)
	_ = v.BindEnv(targetPortKey, TargetPortEnv)
	return v.GetString(targetPortKey)
}

// TargetURL bid request endpoint url, empty values fallback to localhost:8070
func TargetURL(host, port string) string {
	if host == "" {
		host = DefaultTargetHost
	}
	if port == "" {
		port = DefaultTargetPort
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, port), BidRequestPath)
}

package enums

import "fmt"

type GatewayLogType string

const (
	GatewayLogTypeRequest  GatewayLogType = "request"
	GatewayLogTypeResponse GatewayLogType = "response"
	GatewayLogTypeWebhook  GatewayLogType = "webhook"
	GatewayLogTypeError    GatewayLogType = "error"
)

var validGatewayLogTypes = []GatewayLogType{
	GatewayLogTypeRequest,
	GatewayLogTypeResponse,
	GatewayLogTypeWebhook,
	GatewayLogTypeError,
}

// String implements fmt.Stringer.
func (g GatewayLogType) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayLogType.
func (g GatewayLogType) IsValid() bool {
	for _, candidate := range validGatewayLogTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayLogType converts raw input into a GatewayLogType.
func ParseGatewayLogType(value string) (GatewayLogType, error) {
	for _, candidate := range validGatewayLogTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway log type %q", value)
}

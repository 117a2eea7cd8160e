package talos

// Talos API Constants
const (
	BalancesPath = "/v1/balances"

	HeaderKey       = "TALOS-KEY"
	HeaderSign      = "TALOS-SIGN"
	HeaderTimestamp = "TALOS-TS"

	DefaultUserAgent = "tap-talos/1.0"

	// dataKey is the envelope key that wraps every REST response.
	dataKey = "data"
)

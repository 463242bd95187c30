package domain

// DiscoveryRun records one execution of the discovery engine for persistence.
type DiscoveryRun struct {
	RunID            string // deterministic hash, primary key
	TokenAddress     string
	TokenSymbol      string
	MaxWallets       int
	IncludeAirdrops  bool
	WalletsFound     int
	TransfersScanned int
	Incomplete       bool
	IncompleteReason string
	StartedAt        int64 // Unix seconds
	FinishedAt       int64
}

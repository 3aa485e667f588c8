package domain

// AdminStats aggregates accounts and plans for the admin dashboard.
type AdminStats struct {
	TotalAccounts  int                `json:"totalAccounts"`
	AccountsByTier map[string]int     `json:"accountsByTier"`
	PlansByStatus  map[PlanStatus]int `json:"plansByStatus"`
	TotalPlans     int                `json:"totalPlans"`
	QueueBackend   string             `json:"queueBackend"`
	Provider       string             `json:"provider"`
}

// ReconcileResult reports one reconciliation sweep.
type ReconcileResult struct {
	Failed int `json:"failed"`
}

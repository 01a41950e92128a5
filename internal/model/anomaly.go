package model

// AnomalyDetection contains information about price and volume anomalies
type AnomalyDetection struct {
	IsAnomaly        bool     `json:"is_anomaly"`
	AnomalyType      string   `json:"anomaly_type,omitempty"` // VOLUME_SPIKE, PRICE_SPIKE, GAP
	AnomalyScore     float64  `json:"anomaly_score"`          // 0-1 score
	VolumeZ          float64  `json:"volume_z"`
	ReturnZ          float64  `json:"return_z"`
	Details          string   `json:"details,omitempty"`
	RecommendedFlags []string `json:"recommended_flags,omitempty"`
}
